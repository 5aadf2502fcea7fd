package cmd

import (
	"context"
	"fmt"
	"io"
	"sync"

	"github.com/michaelpento.lv/arbscope/types"

	"github.com/sugawarayuuta/sonnet"
	"go.uber.org/zap"
)

// jsonSink writes one JSON document per plan
type jsonSink struct {
	mu     sync.Mutex
	w      io.Writer
	logger *zap.Logger
}

func newJSONSink(w io.Writer, logger *zap.Logger) *jsonSink {
	return &jsonSink{w: w, logger: logger}
}

func (s *jsonSink) Consume(ctx context.Context, plan *types.Plan) error {
	if err := s.Write(plan); err != nil {
		return err
	}
	s.logger.Debug("Plan written", zap.String("plan_id", plan.ID), zap.Uint64("sequence", plan.Sequence))
	return nil
}

func (s *jsonSink) Write(plan *types.Plan) error {
	data, err := sonnet.Marshal(plan)
	if err != nil {
		return fmt.Errorf("failed to encode plan: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, err := s.w.Write(append(data, '\n')); err != nil {
		return fmt.Errorf("failed to write plan: %w", err)
	}
	return nil
}
