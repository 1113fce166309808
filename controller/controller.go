// Copyright 2025 The pdstack Authors
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
// http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package controller

import (
	"context"
	"io"
	"time"

	"github.com/pkg/errors"

	"github.com/pdstack/pdstack/capture"
	"github.com/pdstack/pdstack/common"
	"github.com/pdstack/pdstack/confengine"
	"github.com/pdstack/pdstack/decoder"
	"github.com/pdstack/pdstack/exporter"
	"github.com/pdstack/pdstack/internal/json"
	"github.com/pdstack/pdstack/internal/metricstorage"
	"github.com/pdstack/pdstack/internal/pubsub"
	"github.com/pdstack/pdstack/internal/wait"
	"github.com/pdstack/pdstack/logger"
	"github.com/pdstack/pdstack/pipeline"
	"github.com/pdstack/pdstack/server"
)

type Controller struct {
	ctx       context.Context
	cancel    context.CancelFunc
	buildInfo common.BuildInfo

	pl  *pipeline.Pipeline
	exp *exporter.Exporter
	svr *server.Server
	src capture.Source

	sessions    *sessionSet
	storage     *metricstorage.Storage
	annBus      *pubsub.PubSub
	annotations chan *common.AnnotationEvent
}

func setupLogger(conf *confengine.Config) error {
	var opts logger.Options
	if err := conf.UnpackChild("logger", &opts); err != nil {
		return err
	}

	if opts.Filename == "" {
		opts.Filename = "pdstack.log"
	}
	if opts.MaxBackups <= 0 {
		opts.MaxBackups = 10
	}
	if opts.MaxAge <= 0 {
		opts.MaxAge = 7
	}
	if opts.MaxSize <= 0 {
		opts.MaxSize = 100
	}

	logger.SetOptions(opts)
	return nil
}

func New(conf *confengine.Config, buildInfo common.BuildInfo) (*Controller, error) {
	if err := setupLogger(conf); err != nil {
		return nil, err
	}

	src, err := capture.New(conf)
	if err != nil {
		return nil, err
	}

	storage, err := metricstorage.New(conf)
	if err != nil {
		return nil, err
	}

	exp, err := exporter.New(conf, storage)
	if err != nil {
		return nil, err
	}

	pl, err := pipeline.New(conf)
	if err != nil {
		return nil, err
	}

	svr, err := server.New(conf)
	if err != nil {
		return nil, err
	}

	var dcfg DecodersConfig
	if err := conf.UnpackChild("decoders", &dcfg); err != nil {
		return nil, err
	}

	ctx, cancel := context.WithCancel(context.Background())
	c := &Controller{
		ctx:         ctx,
		cancel:      cancel,
		buildInfo:   buildInfo,
		pl:          pl,
		src:         src,
		svr:         svr,
		exp:         exp,
		storage:     storage,
		annBus:      pubsub.New(),
		annotations: make(chan *common.AnnotationEvent, common.Concurrency()),
	}

	sessions, err := newSessionSet(dcfg, src.SampleRate(), c.onAnnotation)
	if err != nil {
		cancel()
		return nil, err
	}
	c.sessions = sessions
	return c, nil
}

func (c *Controller) Start() error {
	c.setupServer()

	for i := 0; i < common.Concurrency(); i++ {
		go wait.Until(c.ctx, c.consumeAnnotations)
	}

	if c.svr != nil {
		go func() {
			err := c.svr.ListenAndServe()
			if !errors.Is(err, io.EOF) {
				logger.Errorf("failed to start server: %v", err)
			}
		}()
	}

	c.exp.Start()

	if err := c.sessions.Start(); err != nil {
		return err
	}

	c.src.SetOnChunk(func(startSample, endSample uint64, chunk []byte) {
		capturedChunks.Inc()
		capturedSamples.Add(float64(len(chunk)))
		c.sessions.Feed(startSample, endSample, chunk)
	})

	go func() {
		if err := c.src.Start(); err != nil {
			logger.Errorf("capture source (%s) failed: %v", c.src.Name(), err)
		}
	}()
	return nil
}

// onAnnotation 解码会话的注解回调 在采集 goroutine 中同步执行
//
// Event 产出的事件为独立拷贝 投递到 channel 后交由 worker 消费
func (c *Controller) onAnnotation(pd *decoder.ProtoData) {
	select {
	case c.annotations <- pd.Event():
	case <-c.ctx.Done():
	}
}

func (c *Controller) consumeAnnotations() {
	for {
		select {
		case evt := <-c.annotations:
			handledAnnotations.Inc()
			c.publishWatch(evt)

			record := common.NewRecord(common.RecordAnnotations, evt)
			c.exp.Export(record)
			c.pl.Range(record, func(dst *common.Record) {
				c.exp.Export(dst)
			})

		case <-c.ctx.Done():
			return
		}
	}
}

func (c *Controller) publishWatch(evt *common.AnnotationEvent) {
	if c.annBus.Num() == 0 {
		return
	}

	b, err := json.Marshal(evt)
	if err != nil {
		return
	}
	c.annBus.Publish(b)
}

func (c *Controller) recordMetrics() {
	uptime.Set(float64(time.Now().Unix() - common.Started()))
	buildInfo.WithLabelValues(c.buildInfo.Version, c.buildInfo.GitHash, c.buildInfo.Time).Inc()
	captureSampleRate.WithLabelValues(c.src.Name()).Set(float64(c.src.SampleRate()))
}

// Reload 重载配置
//
// 仅支持重载日志选项 采集源与解码堆叠的变更需要重启进程
func (c *Controller) Reload(conf *confengine.Config) error {
	return setupLogger(conf)
}

func (c *Controller) Stop() {
	c.src.Close()
	c.exp.Close()
	c.cancel()
}
