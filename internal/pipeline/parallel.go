package pipeline

import (
	"context"
	"image"
	"sync"

	"github.com/MeKo-Tech/codespot/internal/assembler"
	"github.com/MeKo-Tech/codespot/internal/orientation"
	"github.com/MeKo-Tech/codespot/internal/utils"
)

// regionJob represents a single region assembly job.
type regionJob struct {
	index int
	box   utils.Box
}

// regionResult is the outcome of one job; ok is false for rejected regions.
type regionResult struct {
	index int
	code  assembler.CandidateCode
	ok    bool
}

// AssembleRegions resolves the orientation of every region and assembles the
// ones that are not rejected. Work is spread over at most MaxWorkers
// goroutines; results come back in region order regardless.
func (p *Pipeline) AssembleRegions(ctx context.Context, img image.Image, regions []utils.Box) []assembler.CandidateCode {
	if len(regions) == 0 {
		return []assembler.CandidateCode{}
	}

	workers := min(p.cfg.MaxWorkers, len(regions))
	if workers <= 1 {
		out := make([]assembler.CandidateCode, 0, len(regions))
		for i, box := range regions {
			if r := p.assembleOne(ctx, img, regionJob{index: i, box: box}); r.ok {
				out = append(out, r.code)
			}
		}
		return out
	}

	jobs := make(chan regionJob, len(regions))
	results := make(chan regionResult, len(regions))

	var wg sync.WaitGroup
	for range workers {
		wg.Add(1)
		go p.worker(ctx, img, jobs, results, &wg)
	}

	for i, box := range regions {
		jobs <- regionJob{index: i, box: box}
	}
	close(jobs)

	go func() {
		wg.Wait()
		close(results)
	}()

	// Aggregate results in order
	resultMap := make(map[int]regionResult, len(regions))
	for r := range results {
		resultMap[r.index] = r
	}

	out := make([]assembler.CandidateCode, 0, len(regions))
	for i := range regions {
		if r, ok := resultMap[i]; ok && r.ok {
			out = append(out, r.code)
		}
	}
	return out
}

// worker assembles regions from the jobs channel. Every job is drained even
// after cancellation; the capabilities observe ctx themselves.
func (p *Pipeline) worker(
	ctx context.Context,
	img image.Image,
	jobs <-chan regionJob,
	results chan<- regionResult,
	wg *sync.WaitGroup,
) {
	defer wg.Done()
	for job := range jobs {
		results <- p.assembleOne(ctx, img, job)
	}
}

func (p *Pipeline) assembleOne(ctx context.Context, img image.Image, job regionJob) regionResult {
	o := p.resolver.Resolve(job.box)
	regionsResolved.WithLabelValues(o.String()).Inc()
	if o == orientation.Rejected {
		return regionResult{index: job.index}
	}
	return regionResult{index: job.index, code: p.assembler.Assemble(ctx, img, job.box, o), ok: true}
}
