package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Post is a top-level post or a threaded reply. A reply carries both the
// direct parent and the root of its thread: ParentID points at the post being
// answered, RootID always points at the top of the thread, so replies to
// replies stay attached to the original conversation.
type Post struct {
	ID       uuid.UUID  `json:"id" gorm:"type:uuid;primaryKey"`
	AuthorID uuid.UUID  `json:"author_id" gorm:"type:uuid;index;not null"`
	Body     string     `json:"body" gorm:"type:text;not null"`
	ParentID *uuid.UUID `json:"parent_id,omitempty" gorm:"type:uuid;index"`
	RootID   *uuid.UUID `json:"root_id,omitempty" gorm:"type:uuid;index"`

	Author *User `json:"author,omitempty" gorm:"foreignKey:AuthorID"`

	CreatedAt time.Time      `json:"created_at" gorm:"index"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `json:"-" gorm:"index"`
}

func (Post) TableName() string {
	return "posts"
}

func (p *Post) BeforeCreate(tx *gorm.DB) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	return nil
}

// IsReply reports whether the post lives inside a thread.
func (p *Post) IsReply() bool {
	return p.ParentID != nil
}

// Comment is a flat comment on a post (distinct from threaded replies).
type Comment struct {
	ID       uuid.UUID `json:"id" gorm:"type:uuid;primaryKey"`
	PostID   uuid.UUID `json:"post_id" gorm:"type:uuid;index;not null"`
	AuthorID uuid.UUID `json:"author_id" gorm:"type:uuid;index;not null"`
	Body     string    `json:"body" gorm:"type:text;not null"`

	Author *User `json:"author,omitempty" gorm:"foreignKey:AuthorID"`

	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `json:"-" gorm:"index"`
}

func (Comment) TableName() string {
	return "comments"
}

func (c *Comment) BeforeCreate(tx *gorm.DB) error {
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	return nil
}

// Like records one user liking one post. The composite unique index makes
// duplicate likes a constraint violation rather than a read-then-write race.
type Like struct {
	ID        uuid.UUID `json:"id" gorm:"type:uuid;primaryKey"`
	PostID    uuid.UUID `json:"post_id" gorm:"type:uuid;not null;uniqueIndex:idx_likes_post_user"`
	UserID    uuid.UUID `json:"user_id" gorm:"type:uuid;not null;uniqueIndex:idx_likes_post_user"`
	CreatedAt time.Time `json:"created_at"`
}

func (Like) TableName() string {
	return "likes"
}

func (l *Like) BeforeCreate(tx *gorm.DB) error {
	if l.ID == uuid.Nil {
		l.ID = uuid.New()
	}
	return nil
}

// Share records a repost, optionally with commentary.
type Share struct {
	ID        uuid.UUID `json:"id" gorm:"type:uuid;primaryKey"`
	PostID    uuid.UUID `json:"post_id" gorm:"type:uuid;index;not null"`
	UserID    uuid.UUID `json:"user_id" gorm:"type:uuid;index;not null"`
	Comment   *string   `json:"comment,omitempty" gorm:"type:text"`
	CreatedAt time.Time `json:"created_at"`
}

func (Share) TableName() string {
	return "shares"
}

func (s *Share) BeforeCreate(tx *gorm.DB) error {
	if s.ID == uuid.Nil {
		s.ID = uuid.New()
	}
	return nil
}

// Follow is a directed edge: follower → followee. Self-follow is rejected in
// the service layer; the unique index rejects duplicates.
type Follow struct {
	ID         uuid.UUID `json:"id" gorm:"type:uuid;primaryKey"`
	FollowerID uuid.UUID `json:"follower_id" gorm:"type:uuid;not null;uniqueIndex:idx_follows_pair"`
	FolloweeID uuid.UUID `json:"followee_id" gorm:"type:uuid;not null;uniqueIndex:idx_follows_pair"`
	CreatedAt  time.Time `json:"created_at"`
}

func (Follow) TableName() string {
	return "follows"
}

func (f *Follow) BeforeCreate(tx *gorm.DB) error {
	if f.ID == uuid.Nil {
		f.ID = uuid.New()
	}
	return nil
}
