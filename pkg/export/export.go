// Package export writes scoreboards produced by the spider to their consumers:
// JSON files on disk for static board frontends and Redis for live renderers.
package export

import (
	"context"
	"errors"
	"fmt"

	"github.com/goccy/go-json"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/Sternrassler/pta-board-spider/pkg/model"
)

var (
	exportsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "pta_exports_total",
		Help: "Total board exports by exporter and outcome",
	}, []string{"exporter", "outcome"})

	exportBytes = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "pta_export_bytes",
		Help: "Size of the last exported board documents in bytes",
	}, []string{"exporter", "document"})
)

// Board documents. Each is stored as one JSON value.
const (
	DocumentConfig = "config"
	DocumentTeam   = "team"
	DocumentRun    = "run"
)

// Documents lists the board documents in write order.
var Documents = []string{DocumentConfig, DocumentTeam, DocumentRun}

// ErrNoContest is returned when exporting a board that has no contest yet.
var ErrNoContest = errors.New("board has no contest")

// Exporter publishes a board.
type Exporter interface {
	Export(ctx context.Context, board *model.Board) error
}

// Encode renders the three board documents.
func Encode(board *model.Board) (map[string][]byte, error) {
	if board == nil || board.Contest == nil {
		return nil, ErrNoContest
	}

	teams := board.Teams
	if teams == nil {
		teams = model.Teams{}
	}
	runs := board.Submissions
	if runs == nil {
		runs = model.Submissions{}
	}

	values := map[string]any{
		DocumentConfig: board.Contest,
		DocumentTeam:   teams,
		DocumentRun:    runs,
	}

	docs := make(map[string][]byte, len(values))
	for _, name := range Documents {
		data, err := json.Marshal(values[name])
		if err != nil {
			return nil, fmt.Errorf("encode %s: %w", name, err)
		}
		docs[name] = data
	}
	return docs, nil
}

// Multi exports to every exporter in order and stops at the first failure.
type Multi []Exporter

// Export implements Exporter.
func (m Multi) Export(ctx context.Context, board *model.Board) error {
	for _, e := range m {
		if err := e.Export(ctx, board); err != nil {
			return err
		}
	}
	return nil
}

func recordExport(exporter string, docs map[string][]byte, err error) {
	if err != nil {
		exportsTotal.WithLabelValues(exporter, "error").Inc()
		return
	}
	exportsTotal.WithLabelValues(exporter, "success").Inc()
	for name, data := range docs {
		exportBytes.WithLabelValues(exporter, name).Set(float64(len(data)))
	}
}
