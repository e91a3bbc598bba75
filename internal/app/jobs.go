package app

import (
	"os"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/shirou/gopsutil/cpu"
	"github.com/shirou/gopsutil/mem"
	"github.com/shirou/gopsutil/process"
	"go.uber.org/zap"

	"github.com/estatehub/marketplace/pkg/metrics"
)

var cronParser = cron.NewParser(
	cron.SecondOptional | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor,
)

func (a *Application) initJob() {
	loc, _ := time.LoadLocation(a.appConfig.System.Location)
	if loc == nil {
		loc = time.Local
	}
	a.sched = cron.New(cron.WithLocation(loc), cron.WithParser(cronParser))

	var err error
	_, err = a.sched.AddFunc("@every 30s", func() {
		go a.SchedSystemMonitorTask()
		go a.SchedProcessMonitorTask()
	})
	if err != nil {
		zap.S().Errorf("init job error %s", err.Error())
	}

	sweepSpec := a.appConfig.Cart.SweepSpec
	if sweepSpec == "" {
		sweepSpec = "@every 15m"
	}
	_, err = a.sched.AddFunc(sweepSpec, a.SchedCartSweepTask)
	if err != nil {
		zap.S().Errorf("init job error %s", err.Error())
	}
}

// SchedCartSweepTask reconciles every stored cart so drift is repaired
// even for users who never come back.
func (a *Application) SchedCartSweepTask() {
	defer func() {
		if err := recover(); err != nil {
			zap.S().Error(err)
		}
	}()
	start := time.Now()
	n, err := a.RunCartSweep()
	if err != nil {
		zap.L().Error("cart sweep failed", zap.String("namespace", "cart"), zap.Error(err))
		return
	}
	metrics.SetGauge("cart_sweep_carts", int64(n))
	zap.L().Info("cart sweep finished",
		zap.String("namespace", "cart"),
		zap.Int("carts", n),
		zap.Duration("elapsed", time.Since(start)))
}

// SchedSystemMonitorTask system monitor
func (a *Application) SchedSystemMonitorTask() {
	defer func() {
		if err := recover(); err != nil {
			zap.S().Error(err)
		}
	}()

	_cpuuse, err := cpu.Percent(0, false)
	if err == nil && len(_cpuuse) > 0 {
		metrics.SetGauge("system_cpuuse", int64(_cpuuse[0]*100)) // Store as percentage * 100
	}

	_meminfo, err := mem.VirtualMemory()
	if err == nil {
		metrics.SetGauge("system_memuse", int64(_meminfo.Used/1024/1024))
	}
}

// SchedProcessMonitorTask app process monitor
func (a *Application) SchedProcessMonitorTask() {
	defer func() {
		if err := recover(); err != nil {
			zap.S().Error(err)
		}
	}()

	p, err := process.NewProcess(int32(os.Getpid()))
	if err != nil {
		return
	}

	cpuuse, err := p.CPUPercent()
	if err == nil {
		metrics.SetGauge("estatehub_cpuuse", int64(cpuuse*100)) // Store as percentage * 100
	}

	meminfo, err := p.MemoryInfo()
	if err == nil {
		metrics.SetGauge("estatehub_memuse", int64(meminfo.RSS/1024/1024))
	}
}
