package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/kmlixh/consulWatch"
	"github.com/kmlixh/consulWatch/consul"
	"github.com/kmlixh/consulWatch/event"
	"github.com/kmlixh/consulWatch/kv"
	"github.com/kmlixh/consulWatch/logger"
	"github.com/kmlixh/consulWatch/metrics"
	"github.com/kmlixh/consulWatch/server"
	"github.com/kmlixh/consulWatch/sink"
	"github.com/kmlixh/consulWatch/watch"
)

func main() {
	var configPath, fire string
	flag.StringVar(&configPath, "config", "consulwatch.yml", "path of the config file")
	flag.StringVar(&fire, "fire", "", "fire one event as name=payload and exit")
	flag.Parse()

	cfg, err := consulWatch.LoadConfig(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}

	log := newLogger(cfg.Logging)
	defer log.Close()

	client, err := consul.NewClient(cfg)
	if err != nil {
		log.Fatalf("create consul client: %v", err)
	}

	if fire != "" {
		if err := fireEvent(client, fire, log); err != nil {
			log.Fatalf("fire event: %v", err)
		}
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, client, log); err != nil {
		log.Fatalf("consulwatch: %v", err)
	}
}

func newLogger(c consulWatch.LoggingConfig) *logger.Logger {
	return logger.NewLogger(&logger.Options{
		Level:      logger.ParseLevel(c.Level),
		Output:     os.Stdout,
		Filename:   c.Filename,
		MaxSize:    c.MaxSize,
		MaxBackups: c.MaxBackups,
		MaxAge:     c.MaxAge,
		JSON:       c.JSON,
	})
}

func fireEvent(client *consul.Client, arg string, log *logger.Logger) error {
	name, payload, _ := strings.Cut(arg, "=")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	firer := sink.NewEventFirer(client, name)
	var msg event.Message
	err := consul.RetryWithTimeout(ctx, consul.DefaultRetryAttempts, consul.DefaultRetryDelay, func() error {
		var err error
		msg, err = firer.Send(ctx, []byte(payload))
		return err
	})
	if err != nil {
		return err
	}
	log.Infof("fired event %s id=%s index=%d", msg.Name, msg.ID, msg.Index)
	return nil
}

func run(ctx context.Context, cfg *consulWatch.Config, client *consul.Client, log *logger.Logger) error {
	m := metrics.New()
	group := watch.NewGroup(log)
	logSink := sink.NewLog(log)
	props := sink.NewProperties()

	eventSinks := []event.Sink{logSink}
	kvSinks := []kv.Sink{logSink, props}
	if len(cfg.Kafka.Brokers) > 0 {
		k, err := sink.NewKafka(cfg.Kafka.Brokers, cfg.Kafka.Topic)
		if err != nil {
			return err
		}
		defer k.Close()
		eventSinks = append(eventSinks, k)
		kvSinks = append(kvSinks, k)
	}

	opts := server.Options{Metrics: m, Group: group, Properties: props}

	if cfg.Events.Enabled {
		w := event.NewWatcher(client, sink.Events(eventSinks...),
			event.WithName(cfg.Events.Name),
			event.WithWait(cfg.Events.Wait),
			event.WithLogger(log),
			event.WithMetrics(m),
		)
		if err := group.Add("events", w, cfg.Events.Delay); err != nil {
			return err
		}
		opts.Events = w
	}

	if len(cfg.KV.Contexts) > 0 {
		w, err := kv.NewWatcher(client, cfg.KV.Contexts, sink.Changes(kvSinks...),
			kv.WithWait(cfg.KV.Wait),
			kv.WithInitialEmit(cfg.KV.InitialEmit),
			kv.WithBaseline(props),
			kv.WithLogger(log),
			kv.WithMetrics(m),
		)
		if err != nil {
			return err
		}
		if err := group.Add("kv", w, cfg.KV.Delay); err != nil {
			return err
		}
		opts.KV = w
	}

	if cfg.HTTP.Port > 0 {
		gin.SetMode(gin.ReleaseMode)
		srv := server.New(log, opts)
		srv.Serve(cfg.HTTP.Port)
		defer srv.Shutdown(5 * time.Second)
	}

	if err := group.Start(ctx); err != nil {
		return err
	}
	log.Infof("watching %s: %s", cfg.GetAddress(), strings.Join(group.List(), ", "))

	<-ctx.Done()
	log.Info("shutting down")
	group.StopAll()
	return nil
}
