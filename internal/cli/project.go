package cli

import (
	"errors"

	"github.com/kingrea/crosspost/internal/catalog"
	"github.com/kingrea/crosspost/internal/config"
	"github.com/kingrea/crosspost/internal/dispatch"
	"github.com/kingrea/crosspost/internal/events"
	"github.com/kingrea/crosspost/internal/handoff"
	"github.com/kingrea/crosspost/internal/journal"
	"github.com/kingrea/crosspost/internal/ledger"
	"github.com/kingrea/crosspost/internal/logbook"
	"github.com/kingrea/crosspost/internal/orchestrator"
	"github.com/kingrea/crosspost/internal/schedule"
)

type access int

const (
	readOnly access = iota
	readWrite
)

// project is everything one command needs, opened from the project dir.
type project struct {
	cfg     *config.Config
	cat     *catalog.Catalog
	sched   schedule.Config
	led     *ledger.Ledger
	log     *logbook.Logbook
	journal *journal.Journal
	desk    *handoff.Desk
	orch    *orchestrator.Orchestrator
	mode    access
}

func (a *app) loadConfig() (*config.Config, error) {
	dir, err := a.projectDir()
	if err != nil {
		return nil, err
	}
	var opts []config.LoadOption
	if a.opts.Lookup != nil {
		opts = append(opts, config.WithLookup(a.opts.Lookup))
	}
	cfg, err := config.Load(dir, opts...)
	if err != nil {
		return nil, orchestrator.NewConfigError(err)
	}
	return cfg, nil
}

func loadCatalog(cfg *config.Config) (*catalog.Catalog, error) {
	cat, err := catalog.Load(cfg.CatalogPath(), catalog.LoadOptions{DefaultPlatforms: cfg.DefaultPlatforms()})
	if err != nil {
		return nil, orchestrator.NewConfigError(err)
	}
	return cat, nil
}

// openProject loads config, catalog and ledger and builds the orchestrator.
// readWrite additionally opens the logbook and journal sinks; readOnly
// opens the ledger with ledger.Load so nothing is written back.
func (a *app) openProject(mode access, extra ...orchestrator.Option) (p *project, err error) {
	cfg, err := a.loadConfig()
	if err != nil {
		return nil, err
	}
	sched, err := cfg.Schedule()
	if err != nil {
		return nil, orchestrator.NewConfigError(err)
	}
	cat, err := loadCatalog(cfg)
	if err != nil {
		return nil, err
	}

	p = &project{cfg: cfg, cat: cat, sched: sched, mode: mode}
	defer func() {
		if err != nil {
			p.close()
			p = nil
		}
	}()

	store := ledger.NewFileStore(cfg.LedgerPath())
	if mode == readWrite {
		p.led, err = ledger.Open(store)
	} else {
		p.led, err = ledger.Load(store)
	}
	if err != nil {
		var corrupt *ledger.CorruptLedgerError
		if errors.As(err, &corrupt) {
			return nil, orchestrator.NewConfigError(err)
		}
		return nil, err
	}

	p.desk = handoff.NewDesk(cfg.HandoffDir(),
		handoff.WithClipboard(cfg.Clipboard()),
		handoff.WithAutoOpen(cfg.AutoOpen()),
	)

	opts := []orchestrator.Option{
		orchestrator.WithDesk(p.desk),
		orchestrator.WithRetryPolicy(cfg.RetryPolicy()),
		orchestrator.WithMaxCatchup(cfg.MaxCatchup()),
		orchestrator.WithDisabledPlatforms(cfg.DisabledPlatforms()...),
		orchestrator.WithLocation(cfg.Location()),
		orchestrator.WithCampaignFlag(cfg.CampaignFlagPath()),
		orchestrator.WithRunIDs(journal.NewRunID),
	}
	if a.opts.Now != nil {
		opts = append(opts, orchestrator.WithClock(a.opts.Now))
	}
	if a.opts.Sleep != nil {
		opts = append(opts, orchestrator.WithSleep(a.opts.Sleep))
	}
	if mode == readWrite {
		var logOpts []logbook.Option
		if a.opts.Now != nil {
			logOpts = append(logOpts, logbook.WithClock(a.opts.Now))
		}
		if p.log, err = logbook.New(cfg.LogbookPath(), logOpts...); err != nil {
			return nil, err
		}
		if p.journal, err = journal.Open(cfg.JournalPath()); err != nil {
			return nil, err
		}
		opts = append(opts, orchestrator.WithSink(events.Multi(p.log, p.journal)))
	}
	opts = append(opts, extra...)

	p.orch, err = orchestrator.New(cat, sched, p.led, a.publisher(cfg, sched), opts...)
	if err != nil {
		return nil, err
	}
	return p, nil
}

func (a *app) publisher(cfg *config.Config, sched schedule.Config) orchestrator.Publisher {
	if a.opts.Publisher != nil {
		return a.opts.Publisher
	}
	adapters := dispatch.StandardAdapters(dispatch.Settings{
		Credentials: cfg.Credentials,
		Author:      cfg.Project.Author,
		DateFor:     sched.ExpectedDate,
	})
	return dispatch.New(adapters, dispatch.WithTimeout(cfg.DispatchTimeout()))
}

// close flushes the ledger's last-run stamp and releases the journal.
func (p *project) close() error {
	if p == nil {
		return nil
	}
	var errs []error
	if p.led != nil && p.mode == readWrite {
		errs = append(errs, p.led.Close())
	}
	if p.journal != nil {
		errs = append(errs, p.journal.Close())
	}
	return errors.Join(errs...)
}
