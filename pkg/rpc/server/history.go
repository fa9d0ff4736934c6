package server

import (
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/orchestra-labs/vesting-batcher/pkg/notify"
)

// maxSubmissions is the number of submissions kept in memory.
const maxSubmissions = 100

// SubmissionInfo represents one batch attempt outcome.
type SubmissionInfo struct {
	ID           string    `json:"id"`
	RunID        string    `json:"run_id,omitempty"`
	Batch        int       `json:"batch"`
	TotalBatches int       `json:"total_batches"`
	Records      int       `json:"records"`
	Timestamp    time.Time `json:"timestamp"`
	GasLimit     uint64    `json:"gas_limit"`
	Fee          string    `json:"fee,omitempty"`
	StatusCode   string    `json:"status_code"`
	Outcome      string    `json:"outcome"`
	TxHash       string    `json:"tx_hash,omitempty"`
	Message      string    `json:"message,omitempty"`
}

// SubmissionHistory records batch outcomes and serves them over HTTP.
type SubmissionHistory struct {
	logger      zerolog.Logger
	submissions []SubmissionInfo
	runs        map[string]time.Time
	mutex       sync.RWMutex
}

// NewSubmissionHistory creates an empty SubmissionHistory.
func NewSubmissionHistory(logger zerolog.Logger) *SubmissionHistory {
	return &SubmissionHistory{
		logger:      logger.With().Str("component", "history").Logger(),
		submissions: make([]SubmissionInfo, 0),
		runs:        make(map[string]time.Time),
	}
}

// Notify implements notify.Observer.
// Only the last 100 submissions are kept.
func (s *SubmissionHistory) Notify(ev notify.Event) {
	var outcome string
	switch ev.Kind {
	case notify.EventRunStarted:
		s.mutex.Lock()
		s.runs[ev.RunID] = ev.Time
		s.mutex.Unlock()
		return
	case notify.EventBatchSucceeded:
		outcome = "committed"
	case notify.EventBatchRetrying:
		outcome = "retrying"
	case notify.EventBatchFailed:
		outcome = "failed"
	default:
		return
	}

	info := SubmissionInfo{
		ID:           fmt.Sprintf("submission_%d_%d", ev.Batch, ev.Time.UnixNano()),
		RunID:        ev.RunID,
		Batch:        ev.Batch,
		TotalBatches: ev.TotalBatches,
		Records:      ev.BatchSize,
		Timestamp:    ev.Time,
		GasLimit:     ev.GasPlan.GasLimit,
		StatusCode:   ev.Code.String(),
		Outcome:      outcome,
	}
	if ev.GasPlan.GasLimit > 0 {
		info.Fee = ev.GasPlan.Fee().Amount.String()
	}
	if ev.Result != nil {
		info.TxHash = ev.Result.TransactionHash
	}
	if ev.Err != nil {
		info.Message = ev.Err.Error()
	}

	s.mutex.Lock()
	defer s.mutex.Unlock()
	s.submissions = append(s.submissions, info)
	if len(s.submissions) > maxSubmissions {
		s.submissions = s.submissions[1:]
	}
}

// Submissions returns the recorded submissions, newest first.
func (s *SubmissionHistory) Submissions() []SubmissionInfo {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	reversed := make([]SubmissionInfo, len(s.submissions))
	for i, j := 0, len(s.submissions)-1; j >= 0; i, j = i+1, j-1 {
		reversed[i] = s.submissions[j]
	}
	return reversed
}

// handleSubmissions returns JSON list of recent submissions
func (s *SubmissionHistory) handleSubmissions(w http.ResponseWriter, r *http.Request) {
	submissions := s.Submissions()
	runID := r.URL.Query().Get("run_id")
	if runID != "" {
		filtered := make([]SubmissionInfo, 0, len(submissions))
		for _, sub := range submissions {
			if sub.RunID == runID {
				filtered = append(filtered, sub)
			}
		}
		submissions = filtered
	}

	s.writeJSON(w, map[string]interface{}{
		"submissions": submissions,
		"total":       len(submissions),
	})
}

// handleStats returns aggregated statistics about recorded submissions
func (s *SubmissionHistory) handleStats(w http.ResponseWriter, r *http.Request) {
	s.mutex.RLock()
	var (
		totalSubmissions = len(s.submissions)
		committedCount   int
		retryCount       int
		failedCount      int
		recordCount      int
		totalGas         uint64
		successRate      float64
	)
	for _, sub := range s.submissions {
		switch sub.Outcome {
		case "committed":
			committedCount++
			recordCount += sub.Records
			totalGas += sub.GasLimit
		case "retrying":
			retryCount++
		case "failed":
			failedCount++
		}
	}
	var firstSubmission, lastSubmission *time.Time
	if totalSubmissions > 0 {
		firstSubmission = &s.submissions[0].Timestamp
		lastSubmission = &s.submissions[totalSubmissions-1].Timestamp
	}
	runs := len(s.runs)
	s.mutex.RUnlock()

	if committedCount+failedCount > 0 {
		successRate = float64(committedCount) / float64(committedCount+failedCount) * 100
	}

	s.writeJSON(w, map[string]interface{}{
		"total_submissions": totalSubmissions,
		"committed_count":   committedCount,
		"retry_count":       retryCount,
		"failed_count":      failedCount,
		"committed_records": recordCount,
		"total_gas_limit":   totalGas,
		"success_rate":      fmt.Sprintf("%.2f%%", successRate),
		"runs":              runs,
		"time_range": map[string]interface{}{
			"first": firstSubmission,
			"last":  lastSubmission,
		},
	})
}

func (s *SubmissionHistory) writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Error().Err(err).Msg("Failed to encode history response")
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
	}
}
