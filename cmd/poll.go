package main

import (
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/genesisdigi/How-to-Automate-Reply-in-Webinars-Using-Python/internal/chat"
	"github.com/genesisdigi/How-to-Automate-Reply-in-Webinars-Using-Python/internal/poller"
)

var pollCmd = &cobra.Command{
	Use:   "poll",
	Short: "Watch a webinar chat page in a browser and type replies",
	RunE: func(cmd *cobra.Command, _ []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		if url, _ := cmd.Flags().GetString("url"); url != "" {
			cfg.Poller.URL = url
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		resp, err := buildResponder(cfg)
		if err != nil {
			return err
		}
		repo, closeRepo, err := buildRepo(ctx, cfg)
		if err != nil {
			return err
		}
		defer closeRepo()

		seenStore, closeSeen, err := buildSeen(ctx, cfg)
		if err != nil {
			return err
		}
		defer closeSeen()

		// The surface is the sink here; nothing is forwarded elsewhere.
		svc := chat.NewService(repo, resp, nil, nil)

		pc := cfg.Poller
		open := poller.BrowserOpener(poller.BrowserOptions{
			URL:         pc.URL,
			Headless:    pc.Headless,
			StepTimeout: pc.StepTimeout,
			ChatID:      pc.ChatID,
			Selectors: poller.Selectors{
				Container: pc.ContainerSelector,
				Message:   pc.MessageSelector,
				Text:      pc.TextSelector,
				Sender:    pc.SenderSelector,
				ID:        pc.IDAttribute,
				Input:     pc.InputSelector,
				Submit:    pc.SubmitSelector,
			},
		})

		p := poller.New(open, svc, poller.Options{
			Interval:        pc.Interval,
			SelfName:        pc.SelfName,
			SkipBacklog:     pc.SkipBacklog,
			MaxScanFailures: pc.MaxScanFailures,
			DriftThreshold:  pc.DriftThreshold,
			Store:           seenStore,
		})
		return p.Run(ctx)
	},
}

func init() {
	pollCmd.Flags().String("url", "", "chat page URL (overrides poller.url)")
}
