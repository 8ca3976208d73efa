package model

// PostRecord is a post as stored, with the author as a raw user id
type PostRecord struct {
	ID       string  `db:"id"`
	Author   string  `db:"author"`
	Parent   *string `db:"parent"`
	Title    string  `db:"title"`
	Content  string  `db:"content"`
	Created  int64   `db:"created"`
	Modified int64   `db:"modified"`
}

// Post is a post with its author resolved
type Post struct {
	ID       string  `json:"id"`
	Author   Author  `json:"author"`
	Parent   *string `json:"parent"`
	Title    string  `json:"title"`
	Content  string  `json:"content"`
	Created  int64   `json:"created"`
	Modified int64   `json:"modified"`
}

// Thread is a post decorated with its bounded reply tree
type Thread struct {
	Post
	Children []*Thread `json:"children"`
}

// NewPost joins a stored record with its resolved author
func NewPost(rec *PostRecord, author Author) *Post {
	return &Post{
		ID:       rec.ID,
		Author:   author,
		Parent:   rec.Parent,
		Title:    rec.Title,
		Content:  rec.Content,
		Created:  rec.Created,
		Modified: rec.Modified,
	}
}

// IsRoot returns true if the post has no parent
func (p *Post) IsRoot() bool {
	return p.Parent == nil
}

// Count returns the number of posts in the thread, root included
func (t *Thread) Count() int {
	n := 1
	for _, c := range t.Children {
		n += c.Count()
	}
	return n
}
