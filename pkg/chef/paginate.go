package chef

import (
	"context"
	"net/url"
	"strconv"

	"github.com/cockroachdb/errors"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/ylchen07/chefkit/pkg/models"
	"github.com/ylchen07/chefkit/pkg/session"
)

// page is the outcome of one search request
type page struct {
	start int
	total int
	rows  []map[string]any
	err   error
}

// paginator walks every page of one search
type paginator struct {
	chef       *Chef
	index      string
	query      string
	projection map[string][]string
	rows       int
	workers    int
}

func (p *paginator) url() string {
	return p.chef.orgURL + "/search/" + url.PathEscape(p.index)
}

// fetch requests one page. Every call builds its own parameters, so
// concurrent calls share nothing.
func (p *paginator) fetch(ctx context.Context, start int) page {
	params := url.Values{}
	params.Set("q", p.query)
	params.Set("rows", strconv.Itoa(p.rows))
	params.Set("start", strconv.Itoa(start))

	var (
		resp *session.Response
		err  error
	)
	// A projection needs a body, so it goes out as POST
	if p.projection != nil {
		resp, err = p.chef.requester.Post(ctx, p.url(), params, p.projection)
	} else {
		resp, err = p.chef.requester.Get(ctx, p.url(), params)
	}
	if err != nil {
		return page{start: start, err: err}
	}
	if !resp.OK() {
		return page{start: start, err: responseError(ErrSearchFailed, "search "+p.index, resp)}
	}

	var sp models.SearchPage
	if err := resp.JSON(&sp); err != nil {
		return page{start: start, err: err}
	}
	return page{start: start, total: sp.Total, rows: sp.Rows}
}

// offsets lists the start of every page after the first
func offsets(total, rows int) []int {
	if rows <= 0 || total <= rows {
		return nil
	}
	starts := make([]int, 0, (total-1)/rows)
	for start := rows; start < total; start += rows {
		starts = append(starts, start)
	}
	return starts
}

// fanOut fetches the given pages with at most p.workers in flight. Pages
// arrive on the channel in completion order; it is closed once every
// request has finished.
func (p *paginator) fanOut(ctx context.Context, starts []int) <-chan page {
	out := make(chan page)
	go func() {
		defer close(out)
		var g errgroup.Group
		g.SetLimit(p.workers)
		for _, start := range starts {
			g.Go(func() error {
				out <- p.fetch(ctx, start)
				return nil
			})
		}
		_ = g.Wait()
	}()
	return out
}

// each hands every row of the search to yield. The first page is fetched
// before anything else and keeps server order; later pages follow in the
// order they complete. Failed pages are skipped.
func (p *paginator) each(ctx context.Context, yield func(map[string]any) bool) {
	first := p.fetch(ctx, 0)
	if first.err != nil {
		p.drop(first)
		return
	}

	var rest <-chan page
	if starts := offsets(first.total, p.rows); len(starts) > 0 {
		p.chef.logger.Debug("fanning out search",
			zap.String("index", p.index),
			zap.Int("total", first.total),
			zap.Int("pages", len(starts)+1),
			zap.Int("workers", p.workers),
		)
		rest = p.fanOut(ctx, starts)
	}

	for _, row := range first.rows {
		if !yield(row) {
			drain(rest)
			return
		}
	}

	if rest == nil {
		return
	}
	for pg := range rest {
		if pg.err != nil {
			p.drop(pg)
			continue
		}
		for _, row := range pg.rows {
			if !yield(row) {
				drain(rest)
				return
			}
		}
	}
}

func (p *paginator) drop(pg page) {
	p.chef.logger.Warn("search page dropped",
		zap.String("index", p.index),
		zap.Int("start", pg.start),
		zap.Error(pg.err),
	)
	p.chef.report(Diagnostic{
		Kind:  DiagPageDropped,
		URL:   p.url(),
		Index: p.index,
		Start: pg.start,
		Err:   errors.Wrapf(pg.err, "page at %d", pg.start),
	})
}

// drain lets in-flight requests finish after the consumer stopped early
func drain(ch <-chan page) {
	if ch == nil {
		return
	}
	go func() {
		for range ch {
		}
	}()
}
