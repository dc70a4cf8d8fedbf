package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"slacklog/internal/app"
)

func main() {
	var (
		cfgPath  string
		sendTest bool
	)
	flag.StringVar(&cfgPath, "config", "./config.yaml", "path to config (yaml or json)")
	flag.BoolVar(&sendTest, "send-test", false, "send one test notification and exit")
	flag.Parse()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigCh)
	caught := make(chan os.Signal, 1)
	go func() {
		if sig, ok := <-sigCh; ok {
			caught <- sig
			cancel()
		}
	}()

	a, err := app.NewApp(cfgPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, "fatal:", err)
		os.Exit(1)
	}

	if sendTest {
		out := a.SendTest(ctx)
		switch {
		case out.Delivered:
			fmt.Println("delivered to slack:", out.Subject)
		case out.MailErr == nil:
			fmt.Println("slack failed, mailed admins:", out.PostErr)
		default:
			fmt.Fprintln(os.Stderr, "fatal: slack:", out.PostErr, "mail:", out.MailErr)
			os.Exit(1)
		}
		return
	}

	if err := a.Start(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "fatal start:", err)
		os.Exit(1)
	}

	var reason app.StopReason
	select {
	case sig := <-caught:
		reason = app.StopReasonFor(sig)
	case <-a.Done():
		reason = app.StopFatalError
		select {
		case sig := <-caught:
			reason = app.StopReasonFor(sig)
		default:
		}
	}

	stopCtx, stopCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer stopCancel()
	_ = a.Stop(stopCtx, reason)
	if err := a.Err(); err != nil {
		fmt.Fprintln(os.Stderr, "fatal:", err)
		os.Exit(1)
	}
}
