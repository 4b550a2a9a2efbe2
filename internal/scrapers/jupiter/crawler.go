// Package jupiter crawls the public course catalog served by JupiterWeb:
// units, the subjects they offer and the class sections of each subject.
package jupiter

import (
	"context"
	"errors"
	"fmt"
	"matrusp-crawler/internal/campus"
	"matrusp-crawler/internal/components/assert"
	"matrusp-crawler/internal/components/chrono"
	"matrusp-crawler/internal/components/fetcher"
	"matrusp-crawler/internal/components/telemetry"
	"matrusp-crawler/internal/htmlutil"
	"strings"
	"sync"
	"time"

	"github.com/PuerkitoBio/goquery"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"
)

const (
	report_crawler_new              = "crawler.new"
	report_crawler_discover_units   = "crawler.discover-units"
	report_crawler_discover_subject = "crawler.discover-subjects"
	report_crawler_unknown_unit     = "crawler.unknown-unit"
	report_crawler_drop_section     = "crawler.drop-section"
	report_crawler_drop_subject     = "crawler.drop-subject"
	report_crawler_write_campi      = "crawler.write-campi"
	report_crawler_write_subject    = "crawler.write-subject"
	report_crawler_write_dataset    = "crawler.write-dataset"
	report_crawler_processed        = "crawler.processed"
	report_crawler_discovered       = "crawler.discovered"
)

var (
	tracer = otel.Tracer("matrusp.scrapers.jupiter")
	meter  = otel.Meter("matrusp.scrapers.jupiter")
)

const (
	DefaultConcurrency = 100
	DefaultTimeout     = 120 * time.Second
)

// Sink receives what a crawl produces. WriteSubject is called from many
// goroutines at once.
type Sink interface {
	WriteCampi(ctx context.Context, catalog *Catalog) error
	WriteSubject(ctx context.Context, course CourseInfo) error
	WriteDataset(ctx context.Context, courses []CourseInfo) error
}

type Options struct {
	// Concurrency is the number of subjects being fetched at the same time.
	Concurrency int
	// Timeout applies to a single request, it is doubled on retry.
	Timeout time.Duration
	// Campi resolves the campus of each unit, units of inactive campi are
	// placed in campus.Unknown.
	Campi campus.Resolver
}

// DropReason is why a subject was left out of the dataset.
type DropReason string

const (
	DROP_FETCH_FAILED DropReason = "fetch-failed"
	DROP_BAD_STATUS   DropReason = "bad-status"
	DROP_MALFORMED    DropReason = "malformed"
	DROP_NO_SECTIONS  DropReason = "no-sections"
	DROP_NO_INFO      DropReason = "no-info"
)

type Summary struct {
	Units      int
	Discovered int
	Processed  int
	Dropped    map[DropReason]int
	Elapsed    time.Duration
}

// Result holds the processed courses in completion order, which is not
// stable from one run to the next.
type Result struct {
	Courses []CourseInfo
	Catalog *Catalog
	Summary Summary
}

type Crawler struct {
	endpoints Endpoints
	fetcher   fetcher.Fetcher
	sink      Sink
	time      chrono.TimeAPI
	tel       telemetry.API
	opts      Options

	processedCounter metric.Int64Counter
	droppedCounter   metric.Int64Counter
}

// NewCrawler creates a crawler, every document is fetched through f with a
// single retry.
func NewCrawler(
	endpoints Endpoints,
	f fetcher.Fetcher,
	sink Sink,
	time chrono.TimeAPI,
	tel telemetry.API,
	opts Options,
) *Crawler {
	assert.NotNil(f)
	assert.NotNil(sink)
	assert.NotNil(time)
	assert.NotNil(tel)

	if opts.Concurrency <= 0 {
		opts.Concurrency = DefaultConcurrency
	}
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}

	retrying := fetcher.NewRetrying(f, tel)
	tel = telemetry.NewScopedAPI("jupiter", tel)

	var processed metric.Int64Counter = noop.Int64Counter{}
	var dropped metric.Int64Counter = noop.Int64Counter{}
	counter, err := meter.Int64Counter(
		"jupiter.subjects.processed",
		metric.WithDescription("Subjects written to the dataset."),
	)
	if err != nil {
		tel.ReportWarning(report_crawler_new, err)
	} else {
		processed = counter
	}
	counter, err = meter.Int64Counter(
		"jupiter.subjects.dropped",
		metric.WithDescription("Subjects left out of the dataset, by reason."),
	)
	if err != nil {
		tel.ReportWarning(report_crawler_new, err)
	} else {
		dropped = counter
	}

	return &Crawler{
		endpoints:        endpoints,
		fetcher:          retrying,
		sink:             sink,
		time:             time,
		tel:              tel,
		opts:             opts,
		processedCounter: processed,
		droppedCounter:   dropped,
	}
}

func (c *Crawler) fetchDocument(ctx context.Context, url string) (*goquery.Document, error) {
	body, err := c.fetcher.Fetch(ctx, url, c.opts.Timeout)
	if err != nil {
		return nil, err
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("%w: parse html: %w", ErrAssertion, err)
	}
	return doc, nil
}

// DiscoverUnits fetches the listing of every unit.
func (c *Crawler) DiscoverUnits(ctx context.Context) ([]Unit, error) {
	doc, err := c.fetchDocument(ctx, c.endpoints.Units())
	if err != nil {
		return nil, err
	}
	units := ParseUnits(ctx, doc)
	if len(units) == 0 {
		return nil, fmt.Errorf("%w: unit listing has no units", ErrMissingData)
	}
	return units, nil
}

// DiscoverSubjects fetches the subject listing of a unit.
func (c *Crawler) DiscoverSubjects(ctx context.Context, unitCode int) ([]Subject, error) {
	doc, err := c.fetchDocument(ctx, c.endpoints.Subjects(unitCode))
	if err != nil {
		return nil, err
	}
	return ParseSubjects(ctx, doc, unitCode), nil
}

// discover lists the subjects of every target unit at once. A unit whose
// listing cannot be fetched offers no subjects. Units outside the subset
// are still known to the catalog by name.
func (c *Crawler) discover(ctx context.Context, units []Unit, subset []int) *Catalog {
	targets := units
	if len(subset) > 0 {
		byCode := map[int]Unit{}
		for _, u := range units {
			byCode[u.Code] = u
		}
		targets = nil
		seen := map[int]struct{}{}
		for _, code := range subset {
			if _, dup := seen[code]; dup {
				continue
			}
			seen[code] = struct{}{}
			u, ok := byCode[code]
			if !ok {
				c.tel.ReportWarning(report_crawler_unknown_unit, code)
				u = Unit{Code: code}
			}
			targets = append(targets, u)
		}
	}

	lists := make([][]Subject, len(targets))
	group := errgroup.Group{}
	for i, u := range targets {
		group.Go(func() error {
			subjects, err := c.DiscoverSubjects(ctx, u.Code)
			if err != nil {
				c.tel.ReportWarning(report_crawler_discover_subject, err, u.Code, u.Name)
				return nil
			}
			c.tel.ReportDebug(
				fmt.Sprintf("%d subjects found in unit %d", len(subjects), u.Code),
			)
			lists[i] = subjects
			return nil
		})
	}
	group.Wait()

	subjects := map[int][]Subject{}
	for i, u := range targets {
		subjects[u.Code] = lists[i]
	}
	return BuildCatalog(CatalogOptions{
		Crawled:  targets,
		Subjects: subjects,
		Known:    units,
		Campi:    c.opts.Campi,
	})
}

// Run crawls the given units, or every unit when subset is empty.
//
// Subjects are fetched concurrently up to Options.Concurrency, each one is
// written to the sink as soon as it is processed and the whole dataset is
// written at the end. A subject that fails never stops the others.
func (c *Crawler) Run(ctx context.Context, subset []int) (Result, error) {
	ctx, span := tracer.Start(ctx, "Run")
	defer span.End()

	start := c.time.Now()

	units, err := c.DiscoverUnits(ctx)
	if err != nil {
		c.tel.ReportBroken(report_crawler_discover_units, err, c.endpoints.Units())
		span.RecordError(err)
		span.SetStatus(codes.Error, "unit discovery failed")
		return Result{}, fmt.Errorf("discover units: %w", err)
	}
	c.tel.ReportCount(report_crawler_discover_units, int64(len(units)))

	catalog := c.discover(ctx, units, subset)
	subjects := catalog.Subjects()
	c.tel.ReportCount(report_crawler_discovered, int64(len(subjects)))

	err = c.sink.WriteCampi(ctx, catalog)
	if err != nil {
		c.tel.ReportBroken(report_crawler_write_campi, err)
	}

	courses, summary := c.processAll(ctx, catalog, subjects)
	summary.Units = len(catalog.Units())
	summary.Discovered = len(subjects)

	result := Result{
		Courses: courses,
		Catalog: catalog,
		Summary: summary,
	}

	err = c.sink.WriteDataset(ctx, courses)
	summary.Elapsed = c.time.Now().Sub(start)
	result.Summary.Elapsed = summary.Elapsed
	c.tel.ReportCount(report_crawler_processed, int64(summary.Processed))

	if err != nil {
		c.tel.ReportBroken(report_crawler_write_dataset, err)
		return result, fmt.Errorf("write dataset: %w", err)
	}
	if ctx.Err() != nil {
		return result, ctx.Err()
	}
	if summary.Discovered > 0 && summary.Processed == 0 {
		return result, ErrNothingProcessed
	}
	return result, nil
}

func (c *Crawler) processAll(ctx context.Context, catalog *Catalog, subjects []Subject) ([]CourseInfo, Summary) {
	summary := Summary{Dropped: map[DropReason]int{}}
	courses := []CourseInfo{}
	mutex := sync.Mutex{}

	sem := semaphore.NewWeighted(int64(c.opts.Concurrency))
	wg := sync.WaitGroup{}

	for _, subject := range subjects {
		// only fails when ctx is done, the run is being aborted
		err := sem.Acquire(ctx, 1)
		if err != nil {
			break
		}

		wg.Add(1)
		go func() {
			defer wg.Done()
			defer sem.Release(1)

			course, reason, err := c.processSubject(ctx, catalog, subject)

			mutex.Lock()
			defer mutex.Unlock()
			if err != nil {
				summary.Dropped[reason]++
				return
			}
			courses = append(courses, course)
			summary.Processed++
		}()
	}
	wg.Wait()

	return courses, summary
}

// processSubject fetches the sessions of a subject then, if it has any valid
// section, its info document.
func (c *Crawler) processSubject(ctx context.Context, catalog *Catalog, subject Subject) (CourseInfo, DropReason, error) {
	ctx, span := tracer.Start(ctx, "processSubject", trace.WithAttributes(
		attribute.String("subject.code", subject.Code),
		attribute.Int("unit.code", subject.UnitCode),
	))
	defer span.End()

	course, err := c.scrapeSubject(ctx, catalog, subject)
	if err != nil {
		reason := c.reportDrop(subject, err)
		span.RecordError(err)
		span.SetStatus(codes.Error, string(reason))
		c.droppedCounter.Add(ctx, 1, metric.WithAttributes(attribute.String("reason", string(reason))))
		return CourseInfo{}, reason, err
	}

	c.processedCounter.Add(ctx, 1)

	err = c.sink.WriteSubject(ctx, course)
	if err != nil {
		c.tel.ReportBroken(report_crawler_write_subject, err, subject.Code)
	}
	return course, "", nil
}

func (c *Crawler) scrapeSubject(ctx context.Context, catalog *Catalog, subject Subject) (CourseInfo, error) {
	c.tel.ReportDebug(fmt.Sprintf("fetching sections of %s - %s", subject.Code, subject.Name))
	doc, err := c.fetchDocument(ctx, c.endpoints.Sessions(subject.Code))
	if err != nil {
		return CourseInfo{}, fmt.Errorf("sessions: %w", err)
	}
	sections, dropped := ParseSections(htmlutil.LeafTables(ctx, doc.Selection))
	for _, d := range dropped {
		code := d.Code
		if code == "" {
			code = "unknown"
		}
		c.tel.ReportWarning(report_crawler_drop_section, d.Reason, subject.Code, code)
	}
	if len(sections) == 0 {
		return CourseInfo{}, errNoSections
	}

	c.tel.ReportDebug(fmt.Sprintf("fetching info of %s - %s", subject.Code, subject.Name))
	doc, err = c.fetchDocument(ctx, c.endpoints.Info(subject.Code))
	if err != nil {
		return CourseInfo{}, fmt.Errorf("info: %w", err)
	}
	course, err := ParseCourseInfo(htmlutil.LeafTables(ctx, doc.Selection), catalog.CampusOf)
	if err != nil {
		return CourseInfo{}, err
	}
	course.Sections = sections
	return course, nil
}

// reportDrop reports a dropped subject as loudly as its cause deserves.
func (c *Crawler) reportDrop(subject Subject, err error) DropReason {
	var badStatus *fetcher.BadStatusError
	switch {
	case errors.Is(err, errNoSections):
		c.tel.ReportInfo(report_crawler_drop_subject, err, subject.Code, subject.Name)
		return DROP_NO_SECTIONS
	case errors.Is(err, ErrMissingData):
		c.tel.ReportInfo(report_crawler_drop_subject, err, subject.Code, subject.Name)
		return DROP_NO_INFO
	case errors.As(err, &badStatus):
		c.tel.ReportBroken(report_crawler_drop_subject, err, subject.Code, subject.Name)
		return DROP_BAD_STATUS
	case fetcher.Retryable(err):
		c.tel.ReportWarning(report_crawler_drop_subject, err, subject.Code, subject.Name)
		return DROP_FETCH_FAILED
	default:
		c.tel.ReportBroken(report_crawler_drop_subject, err, subject.Code, subject.Name)
		return DROP_MALFORMED
	}
}
