package models

import "time"

type HealthResponse struct {
	Status       string `json:"status" example:"ok"`
	Store        string `json:"store" example:"postgres"`
	GalleryViews int    `json:"galleryViews" example:"3"`
}

type UploadResponse struct {
	URL      string `json:"url"`
	Path     string `json:"path"`
	Filename string `json:"filename"`
	Size     int64  `json:"size"`
}

type RefreshResponse struct {
	Status      string    `json:"status"`
	RequestedAt time.Time `json:"requestedAt"`
}

type VisibilityResponse struct {
	Visible bool `json:"visible"`
	// Refreshing reports whether regaining visibility started a fetch.
	Refreshing bool   `json:"refreshing"`
	State      string `json:"state"`
}
