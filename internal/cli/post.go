package cli

import (
	"fmt"

	"github.com/existflow/postboard/internal/tui"
	"github.com/spf13/cobra"
)

var postCmd = &cobra.Command{
	Use:   "post",
	Short: "Create, read, edit and delete posts",
}

var postNewCmd = &cobra.Command{
	Use:   "new <title>",
	Short: "Create a post or a reply",
	Long: `Create a post, or a reply when --parent is given.

Examples:
  postboard post new "Hello" -m "First post"
  postboard post new "Re: Hello" -m "Welcome!" --parent 3f2a...`,
	Args: cobra.ExactArgs(1),
	RunE: runPostNew,
}

var postShowCmd = &cobra.Command{
	Use:   "show <id>",
	Short: "Show a post with its replies",
	Args:  cobra.ExactArgs(1),
	RunE:  runPostShow,
}

var postEditCmd = &cobra.Command{
	Use:   "edit <id>",
	Short: "Change a post's title and/or content",
	Args:  cobra.ExactArgs(1),
	RunE:  runPostEdit,
}

var postRmCmd = &cobra.Command{
	Use:     "rm <id>",
	Aliases: []string{"delete"},
	Short:   "Delete a post",
	Args:    cobra.ExactArgs(1),
	RunE:    runPostRm,
}

var postListCmd = &cobra.Command{
	Use:     "list",
	Aliases: []string{"ls"},
	Short:   "List your threads",
	RunE:    runPostList,
}

var (
	postContent string
	postParent  string
	postTitle   string
	treeDepth   int
	treeLimit   int
)

func init() {
	postCmd.AddCommand(postNewCmd)
	postCmd.AddCommand(postShowCmd)
	postCmd.AddCommand(postEditCmd)
	postCmd.AddCommand(postRmCmd)
	postCmd.AddCommand(postListCmd)

	postNewCmd.Flags().StringVarP(&postContent, "content", "m", "", "Post content")
	postNewCmd.Flags().StringVarP(&postParent, "parent", "p", "", "Reply to this post id")
	_ = postNewCmd.MarkFlagRequired("content")

	postEditCmd.Flags().StringVarP(&postTitle, "title", "t", "", "New title")
	postEditCmd.Flags().StringVarP(&postContent, "content", "m", "", "New content")

	for _, c := range []*cobra.Command{postShowCmd, postListCmd, browseCmd} {
		c.Flags().IntVarP(&treeDepth, "depth", "d", 2, "Reply levels to fetch")
		c.Flags().IntVarP(&treeLimit, "limit", "l", 3, "Replies per post to fetch")
	}
}

func runPostNew(cmd *cobra.Command, args []string) error {
	c, err := newClient()
	if err != nil {
		return err
	}

	p, err := c.CreatePost(args[0], postContent, postParent)
	if err != nil {
		return err
	}

	fmt.Printf("✅ Created post %s\n", p.ID)
	return nil
}

func runPostShow(cmd *cobra.Command, args []string) error {
	c, err := newClient()
	if err != nil {
		return err
	}

	t, err := c.GetPost(args[0], treeDepth, treeLimit)
	if err != nil {
		return err
	}

	fmt.Print(tui.RenderThread(t))
	return nil
}

func runPostEdit(cmd *cobra.Command, args []string) error {
	var title, content *string
	if cmd.Flags().Changed("title") {
		title = &postTitle
	}
	if cmd.Flags().Changed("content") {
		content = &postContent
	}
	if title == nil && content == nil {
		return fmt.Errorf("nothing to change, pass --title and/or --content")
	}

	c, err := newClient()
	if err != nil {
		return err
	}

	p, err := c.UpdatePost(args[0], title, content)
	if err != nil {
		return err
	}

	fmt.Printf("✅ Updated post %s\n", p.ID)
	return nil
}

func runPostRm(cmd *cobra.Command, args []string) error {
	c, err := newClient()
	if err != nil {
		return err
	}

	if err := c.DeletePost(args[0]); err != nil {
		return err
	}

	fmt.Printf("🗑️  Deleted post %s\n", args[0])
	return nil
}

func runPostList(cmd *cobra.Command, args []string) error {
	c, err := newClient()
	if err != nil {
		return err
	}

	threads, err := c.ListPosts(treeDepth, treeLimit)
	if err != nil {
		return err
	}

	if len(threads) == 0 {
		fmt.Println("No posts yet. Write one with: postboard post new \"Title\" -m \"Content\"")
		return nil
	}

	for i, t := range threads {
		if i > 0 {
			fmt.Println()
		}
		fmt.Print(tui.RenderThread(t))
	}
	return nil
}
