package services

import (
	"database/sql"
	"errors"
	"fmt"

	"micropost-be/internal/models"
)

var (
	// ErrPostNotFound means no post exists for the given ID.
	ErrPostNotFound = errors.New("post not found")
	// ErrNotOwner means the caller does not own the post.
	ErrNotOwner = errors.New("not the post owner")
	// ErrAlreadyLiked means the user is already in the post's liked-by set.
	ErrAlreadyLiked = errors.New("post already liked")
	// ErrNotLiked means the user is not in the post's liked-by set.
	ErrNotLiked = errors.New("post not liked")
)

// PostServiceProvider defines the interface for post services.
type PostServiceProvider interface {
	ListPosts() ([]models.Post, error)
	CreatePost(userID, name, text string) (models.Post, error)
	GetPostByID(id int64) (models.Post, error)
	UpdatePost(id int64, userID, name, text string) (models.Post, error)
	DeletePost(id int64, userID string) error
	LikePost(id int64, userID string) error
	UnlikePost(id int64, userID string) error
}

// PostService provides business logic for posts and their liked-by sets.
type PostService struct {
	db           *sql.DB
	eventService EventServiceProvider
}

// NewPostService creates a new PostService.
func NewPostService(db *sql.DB, eventService EventServiceProvider) *PostService {
	return &PostService{db: db, eventService: eventService}
}

// ListPosts returns all posts, newest first.
func (s *PostService) ListPosts() ([]models.Post, error) {
	rows, err := s.db.Query(`
		SELECT p.id, p.user_id, u.username, p.name, p.text, p.created_at
		FROM posts p JOIN users u ON u.id = p.user_id
		ORDER BY p.created_at DESC, p.id DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var posts []models.Post
	index := make(map[int64]int)
	for rows.Next() {
		var post models.Post
		if err := rows.Scan(&post.ID, &post.UserID, &post.Username, &post.Name, &post.Text, &post.CreatedAt); err != nil {
			return nil, err
		}
		post.Likes = []string{}
		index[post.ID] = len(posts)
		posts = append(posts, post)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	likeRows, err := s.db.Query(`
		SELECT pl.post_id, u.username
		FROM post_likes pl JOIN users u ON u.id = pl.user_id
		ORDER BY pl.created_at`)
	if err != nil {
		return nil, err
	}
	defer likeRows.Close()

	for likeRows.Next() {
		var postID int64
		var username string
		if err := likeRows.Scan(&postID, &username); err != nil {
			return nil, err
		}
		if i, ok := index[postID]; ok {
			posts[i].Likes = append(posts[i].Likes, username)
			posts[i].LikeCount++
		}
	}
	return posts, likeRows.Err()
}

// CreatePost creates a post owned by the given user.
func (s *PostService) CreatePost(userID, name, text string) (models.Post, error) {
	res, err := s.db.Exec("INSERT INTO posts(user_id, name, text) VALUES(?, ?, ?)", userID, name, text)
	if err != nil {
		return models.Post{}, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return models.Post{}, err
	}

	s.eventService.CreateEvent("post.create", "info",
		fmt.Sprintf("Post '%s' created.", name), &id)
	return s.GetPostByID(id)
}

// GetPostByID retrieves a single post with its liked-by set.
func (s *PostService) GetPostByID(id int64) (models.Post, error) {
	var post models.Post
	row := s.db.QueryRow(`
		SELECT p.id, p.user_id, u.username, p.name, p.text, p.created_at
		FROM posts p JOIN users u ON u.id = p.user_id
		WHERE p.id = ?`, id)
	err := row.Scan(&post.ID, &post.UserID, &post.Username, &post.Name, &post.Text, &post.CreatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return models.Post{}, ErrPostNotFound
		}
		return models.Post{}, err
	}

	post.Likes = []string{}
	rows, err := s.db.Query(`
		SELECT u.username FROM post_likes pl JOIN users u ON u.id = pl.user_id
		WHERE pl.post_id = ? ORDER BY pl.created_at`, id)
	if err != nil {
		return models.Post{}, err
	}
	defer rows.Close()
	for rows.Next() {
		var username string
		if err := rows.Scan(&username); err != nil {
			return models.Post{}, err
		}
		post.Likes = append(post.Likes, username)
	}
	post.LikeCount = len(post.Likes)
	return post, rows.Err()
}

// UpdatePost changes a post's name and text. Only the owner may update;
// ownership is never reassigned.
func (s *PostService) UpdatePost(id int64, userID, name, text string) (models.Post, error) {
	if err := s.checkOwner(id, userID); err != nil {
		return models.Post{}, err
	}

	if _, err := s.db.Exec("UPDATE posts SET name = ?, text = ? WHERE id = ?", name, text, id); err != nil {
		return models.Post{}, err
	}

	s.eventService.CreateEvent("post.update", "info",
		fmt.Sprintf("Post '%s' updated.", name), &id)
	return s.GetPostByID(id)
}

// DeletePost removes a post. Only the owner may delete.
func (s *PostService) DeletePost(id int64, userID string) error {
	if err := s.checkOwner(id, userID); err != nil {
		return err
	}

	if _, err := s.db.Exec("DELETE FROM posts WHERE id = ?", id); err != nil {
		return err
	}

	s.eventService.CreateEvent("post.delete", "info",
		fmt.Sprintf("Post %d deleted.", id), &id)
	return nil
}

// LikePost adds the user to the post's liked-by set. The insert itself
// is the serialization point: two concurrent likes race on the
// (post_id, user_id) primary key and the loser gets ErrAlreadyLiked,
// never a duplicate row.
func (s *PostService) LikePost(id int64, userID string) error {
	if err := s.postExists(id); err != nil {
		return err
	}

	if err := s.insertLike(id, userID); err != nil {
		return err
	}

	s.eventService.CreateEvent("post.like", "info",
		fmt.Sprintf("Post %d liked.", id), &id)
	return nil
}

func (s *PostService) insertLike(id int64, userID string) error {
	_, err := s.db.Exec("INSERT INTO post_likes(post_id, user_id) VALUES(?, ?)", id, userID)
	if err != nil {
		switch {
		case isConstraintErr(err, sqliteConstraintPrimaryKey):
			return ErrAlreadyLiked
		case isConstraintErr(err, sqliteConstraintForeignKey):
			// The post was deleted between the existence check and
			// the insert.
			return ErrPostNotFound
		}
		return err
	}
	return nil
}

// UnlikePost removes the user from the post's liked-by set.
func (s *PostService) UnlikePost(id int64, userID string) error {
	if err := s.postExists(id); err != nil {
		return err
	}

	res, err := s.db.Exec("DELETE FROM post_likes WHERE post_id = ? AND user_id = ?", id, userID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotLiked
	}

	s.eventService.CreateEvent("post.unlike", "info",
		fmt.Sprintf("Like removed from post %d.", id), &id)
	return nil
}

func (s *PostService) postExists(id int64) error {
	var one int
	err := s.db.QueryRow("SELECT 1 FROM posts WHERE id = ?", id).Scan(&one)
	if err == sql.ErrNoRows {
		return ErrPostNotFound
	}
	return err
}

func (s *PostService) checkOwner(id int64, userID string) error {
	var ownerID string
	err := s.db.QueryRow("SELECT user_id FROM posts WHERE id = ?", id).Scan(&ownerID)
	if err == sql.ErrNoRows {
		return ErrPostNotFound
	}
	if err != nil {
		return err
	}
	if ownerID != userID {
		return ErrNotOwner
	}
	return nil
}
