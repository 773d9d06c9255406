package models

import "time"

type ExportBatch struct {
	ID             string
	Region         string
	StartTimestamp time.Time
	EndTimestamp   time.Time
	CreatedAt      time.Time
}

// ExportFile records one uploaded container. Filename is the object name
// relative to the bucket root, e.g. "US/1589932800-1590019200-00001.zip".
type ExportFile struct {
	Filename  string
	BatchID   string
	Region    string
	BatchNum  int32
	BatchSize int32
	Keys      int
	CreatedAt time.Time
}
