package post

import "fmt"

// Policy decides what Delete does with the replies of a post
type Policy string

const (
	// PolicyReject refuses to delete a post that has replies
	PolicyReject Policy = "reject"
	// PolicyDetach turns the direct replies into root posts
	PolicyDetach Policy = "detach"
	// PolicyCascade deletes the whole subtree
	PolicyCascade Policy = "cascade"
)

// ParsePolicy converts a config value to a Policy
func ParsePolicy(s string) (Policy, error) {
	switch p := Policy(s); p {
	case PolicyReject, PolicyDetach, PolicyCascade:
		return p, nil
	case "":
		return PolicyReject, nil
	default:
		return "", fmt.Errorf("unknown delete policy %q", s)
	}
}
