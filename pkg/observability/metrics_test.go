package observability

import (
	"errors"
	"testing"
	"time"
)

// testMetrics is created once for the whole test binary: NewMetrics
// registers with the default Prometheus registry, which panics on a
// second registration of the same metric names.
var testMetrics = NewMetrics()

func TestMetrics(t *testing.T) {
	m := testMetrics

	t.Run("NewMetrics", func(t *testing.T) {
		if m == nil {
			t.Fatal("NewMetrics returned nil")
		}
		if m.OpensTotal == nil {
			t.Error("OpensTotal not initialized")
		}
		if m.InsertsTotal == nil {
			t.Error("InsertsTotal not initialized")
		}
		if m.SearchDuration == nil {
			t.Error("SearchDuration not initialized")
		}
		if m.FileSizeBytes == nil {
			t.Error("FileSizeBytes not initialized")
		}
	})

	t.Run("RecordOpen", func(t *testing.T) {
		m.RecordOpen("default", nil)
		m.RecordOpen("default", errors.New("boom"))
	})

	t.Run("RecordClose", func(t *testing.T) {
		m.RecordClose("default")
	})

	t.Run("RecordInsert", func(t *testing.T) {
		m.RecordInsert("default", 5*time.Millisecond, nil)
		for i := 0; i < 100; i++ {
			m.RecordInsert("default", time.Duration(i)*time.Microsecond, nil)
		}
		m.RecordInsert("default", time.Millisecond, errors.New("boom"))
	})

	t.Run("RecordSearch", func(t *testing.T) {
		m.RecordSearch("default", 2*time.Millisecond, 10, 32, nil)
		for i := 1; i <= 50; i++ {
			m.RecordSearch("default", time.Duration(i)*time.Microsecond, i, i*2, nil)
		}
		m.RecordSearch("default", time.Millisecond, 0, 0, errors.New("boom"))
	})

	t.Run("RecordBackLinkRewrite", func(t *testing.T) {
		for i := 0; i < 10; i++ {
			m.RecordBackLinkRewrite("default")
		}
	})

	t.Run("RecordPrune", func(t *testing.T) {
		for i := 0; i < 10; i++ {
			m.RecordPrune("default")
		}
	})

	t.Run("RecordBlockReadWrite", func(t *testing.T) {
		for i := 0; i < 25; i++ {
			m.RecordBlockRead("default")
		}
		for i := 0; i < 5; i++ {
			m.RecordBlockWrite("default")
		}
	})

	t.Run("UpdateFileSize", func(t *testing.T) {
		m.UpdateFileSize("default", 4096)
		m.UpdateFileSize("default", 8192)
		m.UpdateFileSize("production", 1024*1024)
	})
}

func TestConcurrentMetricUpdates(t *testing.T) {
	m := testMetrics
	done := make(chan bool, 10)

	for i := 0; i < 10; i++ {
		go func() {
			for j := 0; j < 10; j++ {
				m.RecordInsert("default", time.Microsecond, nil)
				m.RecordBlockRead("default")
			}
			done <- true
		}()
	}

	for i := 0; i < 10; i++ {
		<-done
	}
}

type codedErr struct{ code string }

func (e codedErr) Error() string   { return e.code }
func (e codedErr) ErrCode() string { return e.code }

func TestErrCodeUsesCoderInterface(t *testing.T) {
	if got := errCode(codedErr{code: "invalid_argument"}); got != "invalid_argument" {
		t.Errorf("expected coder's ErrCode to be used, got %q", got)
	}
	if got := errCode(errors.New("plain")); got != "error" {
		t.Errorf("expected fallback \"error\" for a plain error, got %q", got)
	}
}
