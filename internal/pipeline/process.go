package pipeline

import (
	"context"
	"image"

	"github.com/MeKo-Tech/codespot/internal/assembler"
	"github.com/MeKo-Tech/codespot/internal/cluster"
	"github.com/MeKo-Tech/codespot/internal/common"
	"github.com/MeKo-Tech/codespot/internal/detector"
	"github.com/MeKo-Tech/codespot/internal/utils"
	"go.uber.org/zap"
)

// Outcome is everything learned about one frame.
type Outcome struct {
	// Codes are the accepted candidates in region order.
	Codes []assembler.CandidateCode
	// Candidates are all assembled regions before validation.
	Candidates []assembler.CandidateCode
	Detections int
	Kept       int
	Regions    []utils.Box
	// DetectErr is set when detection failed; the outcome is then empty.
	DetectErr error
	Timings   *common.Stopwatch
}

// Record converts the accepted codes to the persisted form.
func (o Outcome) Record() ResultRecord { return NewResultRecord(o.Codes) }

// Detect runs the detection capability. Errors are returned unchanged so the
// caller can decide how to degrade.
func (p *Pipeline) Detect(ctx context.Context, img image.Image) ([]detector.Detection, error) {
	return p.detector.Detect(ctx, img)
}

// merge reduces polygons to boxes and merges nearby boxes into regions.
func (p *Pipeline) merge(polys []detector.Polygon) []utils.Box {
	return cluster.MergeBoxes(detector.PolygonsToBoxes(polys), p.cfg.ClusterEps)
}

// Validate keeps the candidates whose text matches the code pattern and
// records the matched substrings on them.
func (p *Pipeline) Validate(candidates []assembler.CandidateCode) []assembler.CandidateCode {
	accepted := make([]assembler.CandidateCode, 0, len(candidates))
	for _, c := range candidates {
		matches, ok := p.validator.Validate(c.Text)
		if !ok {
			if c.Text != "" {
				p.logger.Debug("candidate rejected by pattern", zap.String("text", c.Text))
			}
			continue
		}
		c.Matches = matches
		accepted = append(accepted, c)
	}
	return accepted
}

// FindCodes runs the whole chain on one frame. A detection failure is logged
// and yields an empty outcome; it never aborts the caller.
func (p *Pipeline) FindCodes(ctx context.Context, img image.Image) Outcome {
	sw := common.NewStopwatch()
	out := Outcome{Codes: []assembler.CandidateCode{}, Timings: sw}

	dets, err := p.Detect(ctx, img)
	stageDuration.WithLabelValues("detect").Observe(sw.Lap("detect").Seconds())
	if err != nil {
		p.logger.Warn("detection failed, continuing with no regions", zap.Error(err))
		detectionFailures.Inc()
		out.DetectErr = err
		return out
	}
	out.Detections = len(dets)

	polys := detector.FilterPolygons(dets, p.cfg.MinDetectionScore)
	out.Kept = len(polys)
	out.Regions = p.merge(polys)
	stageDuration.WithLabelValues("cluster").Observe(sw.Lap("cluster").Seconds())

	out.Candidates = p.AssembleRegions(ctx, img, out.Regions)
	stageDuration.WithLabelValues("assemble").Observe(sw.Lap("assemble").Seconds())

	out.Codes = p.Validate(out.Candidates)
	stageDuration.WithLabelValues("validate").Observe(sw.Lap("validate").Seconds())
	codesAccepted.Add(float64(len(out.Codes)))

	p.logger.Debug("frame processed",
		zap.Int("detections", out.Detections),
		zap.Int("kept", out.Kept),
		zap.Int("regions", len(out.Regions)),
		zap.Int("candidates", len(out.Candidates)),
		zap.Int("codes", len(out.Codes)),
		sw.Field())
	return out
}
