package core

import "time"

// Metrics receives import instrumentation. The service uses a no-op
// implementation unless one is supplied.
type Metrics interface {
	// RowProcessed is called once per data row with "accepted" or the skip reason.
	RowProcessed(outcome string)
	BatchFlushed(size int, d time.Duration)
	ImportFinished(status ImportStatus, d time.Duration)
}

// RowAccepted is the RowProcessed outcome for rows buffered for saving.
const RowAccepted = "accepted"

type nopMetrics struct{}

func (nopMetrics) RowProcessed(string)                        {}
func (nopMetrics) BatchFlushed(int, time.Duration)            {}
func (nopMetrics) ImportFinished(ImportStatus, time.Duration) {}
