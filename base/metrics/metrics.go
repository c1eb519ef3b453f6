/*
Package metrics wraps datadog-go to facilitate metric recording
Following are naming convention of metric:
- Internal process time: *.time
- External latency: *.latency
- Error: *.err
- Warning: *.warn
*/
package metrics

import (
	"strings"

	"github.com/spf13/viper"

	"github.com/talmarket/goapi/base/env"
)

const (
	// TagValueNA is used for tags whose values are not available.
	TagValueNA = "n/a"
)

// Ender provides interface for BumpTime
type Ender interface {
	End()
}

// Service provides interface for metrics
type Service interface {
	BumpAvg(key string, val float64, tags ...string)
	BumpSum(key string, val float64, tags ...string)
	BumpHistogram(key string, val float64, tags ...string)

	BumpTime(key string, tags ...string) Ender
}

// New creates a metric client with package name as prefix
func New(pkgName string) Service {
	ddTags := []string{
		// using host removes all tags associated with host
		// ref: https://docs.datadoghq.com/developers/dogstatsd/data_types/#host-tag-key
		"host:",
		"pod:" + env.PodName(),
		"env:" + viper.GetString("env_name"),
		"app:" + viper.GetString("app_name"),
	}

	return &Metrics{
		pkgName: pkgName,
		datadog: DDMetrics{
			ddTags: ddTags,
		},
	}
}

// Metrics sends measurements to the datadog agent under a package prefix.
type Metrics struct {
	pkgName string
	datadog DDMetrics
}

// bumpSumPanic handles panics caused by inconsistent tagging.
func (mt *Metrics) bumpSumPanic(key, tag string) {
	mt.datadog.BumpSum(key, 1, 1, "tag", tag)
}

// BumpAvg bumps the average for the given key.
func (mt *Metrics) BumpAvg(key string, val float64, tags ...string) {
	defer func() {
		if err := recover(); err != nil {
			mt.bumpSumPanic("bumpavg.panic", mt.pkgName+`.`+key+"#"+strings.Join(tags, "#"))
		}
	}()

	mt.datadog.BumpAvg(mt.pkgName+`.`+key, val, 1, tags...)
}

// BumpSum bumps the sum for the given key.
func (mt *Metrics) BumpSum(key string, val float64, tags ...string) {
	defer func() {
		if err := recover(); err != nil {
			mt.bumpSumPanic("bumpsum.panic", mt.pkgName+`.`+key+"#"+strings.Join(tags, "#"))
		}
	}()

	mt.datadog.BumpSum(mt.pkgName+`.`+key, val, 1, tags...)
}

// BumpHistogram bumps the histogram for the given key.
func (mt *Metrics) BumpHistogram(key string, val float64, tags ...string) {
	defer func() {
		if err := recover(); err != nil {
			mt.bumpSumPanic("bumphistogram.panic", mt.pkgName+`.`+key+"#"+strings.Join(tags, "#"))
		}
	}()

	mt.datadog.BumpHistogram(mt.pkgName+`.`+key, val, 1, tags...)
}

// BumpTime is a special version of BumpHistogram which is specialized for
// timers. Calling it starts the timer, and it returns a value on which End()
// can be called to indicate finishing the timer:
//
//	defer s.BumpTime("my.function").End()
func (mt *Metrics) BumpTime(key string, tags ...string) Ender {
	ddEnd := mt.datadog.BumpTime(mt.pkgName+`.`+key, 1, tags...)

	return &timeTracker{
		ddEnd: ddEnd,
		panicHandler: func() {
			mt.bumpSumPanic("bumptime.panic", mt.pkgName+`.`+key+"#"+strings.Join(tags, "#"))
		},
	}
}

type timeTracker struct {
	ddEnd        Ender
	panicHandler func()
}

func (t *timeTracker) End() {
	defer func() {
		if err := recover(); err != nil {
			t.panicHandler()
		}
	}()

	t.ddEnd.End()
}
