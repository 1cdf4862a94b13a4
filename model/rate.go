// gatekeeper/model/rate.go
package model

import "time"

type RateWindow struct {
	SubjectID   string    `json:"subject_id"`
	WindowStart time.Time `json:"window_start"`
	Count       int64     `json:"count"`
	Limit       int64     `json:"limit"`
}

func (w *RateWindow) Remaining() int64 {
	if w.Count >= w.Limit {
		return 0
	}
	return w.Limit - w.Count
}

func (w *RateWindow) ResetAt(window time.Duration) time.Time {
	return w.WindowStart.Add(window)
}

type NonceRecord struct {
	KeyID  string    `json:"key_id"`
	Nonce  string    `json:"nonce"`
	SeenAt time.Time `json:"seen_at"`
}
