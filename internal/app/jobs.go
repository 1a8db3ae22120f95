package app

import (
	"context"
	"sort"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/talkincode/storefront/internal/apperr"
	"github.com/talkincode/storefront/internal/domain"
	"github.com/talkincode/storefront/pkg/common"
)

const (
	JobSweepOrphans    = "sweep_orphans"
	JobClearExpireData = "clear_expire_data"

	auditRetention = 365 * 24 * time.Hour
)

var cronParser = cron.NewParser(
	cron.SecondOptional | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor,
)

// JobInfo describes a registered background job
type JobInfo struct {
	Name    string    `json:"name"`
	Spec    string    `json:"spec"`
	NextRun time.Time `json:"next_run"`
	PrevRun time.Time `json:"prev_run"`
}

type job struct {
	name  string
	spec  string
	run   func()
	entry cron.EntryID
}

// initJob registers the background jobs. The scheduler is started by Init.
func (a *Application) initJob() {
	loc, err := time.LoadLocation(a.appConfig.System.Location)
	if err != nil {
		loc = time.Local
	}
	a.sched = cron.New(cron.WithLocation(loc), cron.WithParser(cronParser))
	a.jobs = nil

	a.addJob(JobSweepOrphans, common.IfEmptyStr(a.appConfig.Storage.SweepCron, "@daily"), a.SchedSweepOrphansTask)
	a.addJob(JobClearExpireData, "@daily", a.SchedClearExpireData)
}

func (a *Application) addJob(name, spec string, fn func()) {
	id, err := a.sched.AddFunc(spec, fn)
	if err != nil {
		zap.S().Errorf("init job error %s", err.Error())
		return
	}
	a.jobs = append(a.jobs, job{name: name, spec: spec, run: fn, entry: id})
}

// Jobs lists the registered jobs sorted by name
func (a *Application) Jobs() []JobInfo {
	out := make([]JobInfo, 0, len(a.jobs))
	for _, j := range a.jobs {
		e := a.sched.Entry(j.entry)
		out = append(out, JobInfo{Name: j.name, Spec: j.spec, NextRun: e.Next, PrevRun: e.Prev})
	}
	sort.Slice(out, func(i, k int) bool { return out[i].Name < out[k].Name })
	return out
}

// RunJobNow runs the named job synchronously outside its schedule
func (a *Application) RunJobNow(name string) error {
	for _, j := range a.jobs {
		if j.name == name {
			j.run()
			return nil
		}
	}
	return apperr.NotFound("app.RunJobNow", "job %q", name)
}

// SchedSweepOrphansTask removes stored images left without a metadata row
func (a *Application) SchedSweepOrphansTask() {
	defer func() {
		if err := recover(); err != nil {
			zap.S().Error(err)
		}
	}()
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Minute)
	defer cancel()
	if _, err := a.SweepOrphans(ctx); err != nil {
		zap.L().Error("orphan image sweep failed", zap.Error(err))
	}
}

// SchedClearExpireData drops audit entries older than a year
func (a *Application) SchedClearExpireData() {
	defer func() {
		if err := recover(); err != nil {
			zap.S().Error(err)
		}
	}()
	a.gormDB.
		Where("opt_time < ? ", time.Now().
			Add(-auditRetention)).Delete(domain.SysOprLog{})
}
