package domain

import (
	"fmt"
	"time"
)

type SourceType string

const (
	SourceUpload  SourceType = "UPLOAD"
	SourceYouTube SourceType = "YOUTUBE"
)

type VideoStatus string

const (
	StatusPending    VideoStatus = "PENDING"
	StatusProcessing VideoStatus = "PROCESSING"
	StatusCompleted  VideoStatus = "COMPLETED"
	StatusFailed     VideoStatus = "FAILED"
)

type Category struct {
	ID   uint   `gorm:"primaryKey" json:"id"`
	Name string `gorm:"size:100;uniqueIndex" json:"name"`
}

func (Category) TableName() string { return "categories" }

// Video is the upstream entity the pipeline reads and selectively writes
// back to (status, description, updated_at only).
type Video struct {
	ID          uint        `gorm:"primaryKey" json:"id"`
	Name        string      `gorm:"size:255" json:"name"`
	Description string      `gorm:"type:text" json:"description"`
	CategoryID  *uint       `json:"category_id"`
	Category    *Category   `json:"category,omitempty"`
	SourceType  SourceType  `gorm:"size:10" json:"source_type"`
	FilePath    string      `gorm:"size:1024" json:"file_path"`
	SourceURL   string      `gorm:"size:1024" json:"source_url"`
	Status      VideoStatus `gorm:"size:20;default:PENDING" json:"status"`
	CreatedAt   time.Time   `json:"created_at"`
	UpdatedAt   time.Time   `json:"updated_at"`

	Intervals []VideoInterval `gorm:"constraint:OnDelete:CASCADE" json:"intervals,omitempty"`
}

func (Video) TableName() string { return "videos" }

// Validate enforces that the source location matches the declared source
// type: uploads carry a file path, remote videos carry a URL, never both.
func (v *Video) Validate() error {
	hasFile := v.FilePath != ""
	hasURL := v.SourceURL != ""
	if hasFile == hasURL {
		return fmt.Errorf("provide either a video file or a source URL, not both")
	}
	if v.SourceType == SourceUpload && !hasFile {
		return fmt.Errorf("uploaded videos must include a file")
	}
	if v.SourceType == SourceYouTube && !hasURL {
		return fmt.Errorf("remote videos must include a source URL")
	}
	return nil
}

func (v *Video) CategoryName() string {
	if v.Category == nil || v.Category.Name == "" {
		return "general"
	}
	return v.Category.Name
}

// VideoInterval is a manually authored transcription range. When present,
// intervals bypass automatic segment detection entirely.
type VideoInterval struct {
	ID          uint `gorm:"primaryKey" json:"id"`
	VideoID     uint `gorm:"index" json:"video_id"`
	Order       int  `gorm:"column:ordinal" json:"order"`
	StartSecond int  `json:"start_second"`
	EndSecond   int  `json:"end_second"`
}

func (VideoInterval) TableName() string { return "video_intervals" }

func (i *VideoInterval) Validate() error {
	if i.StartSecond < 0 {
		return fmt.Errorf("interval start must not be negative")
	}
	if i.EndSecond <= i.StartSecond {
		return fmt.Errorf("interval end must be greater than the start")
	}
	return nil
}

// Prompt is a dynamically configured prompt template. Templates may contain
// a {category} placeholder substituted at fetch time.
type Prompt struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	Purpose   string    `gorm:"size:64;index" json:"purpose"`
	Template  string    `gorm:"type:text" json:"template"`
	IsActive  bool      `gorm:"default:true" json:"is_active"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (Prompt) TableName() string { return "prompts" }
