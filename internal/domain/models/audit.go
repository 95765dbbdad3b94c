package models

import "time"

// ScanEvent records one processed submission for auditing.
type ScanEvent struct {
	ID         string      `bson:"_id" json:"id"`
	Identifier string      `bson:"identifier" json:"identifier"`
	Status     StatusCode  `bson:"status" json:"status"`
	Location   string      `bson:"location" json:"location"`
	Room       string      `bson:"room" json:"room"`
	Outcome    OutcomeKind `bson:"outcome" json:"outcome"`
	Label      string      `bson:"label" json:"label"`
	RowNumber  int         `bson:"row_number" json:"row_number"`
	ScannedAt  time.Time   `bson:"scanned_at" json:"scanned_at"`
}

// ProgressSnapshot captures the processed count at a point in time.
type ProgressSnapshot struct {
	MarkedCount int       `bson:"marked_count" json:"marked_count"`
	TotalCount  int       `bson:"total_count" json:"total_count"`
	TakenAt     time.Time `bson:"taken_at" json:"taken_at"`
}
