package main

import (
	"bufio"
	"context"
	"crypto/tls"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"golang.org/x/sync/errgroup"

	"github.com/zsiec/moqc"
)

func main() {
	level := slog.LevelInfo
	if os.Getenv("DEBUG") != "" {
		level = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		slog.Info("received signal, shutting down", "signal", sig)
		cancel()
	}()

	url := envOr("MOQ_URL", "https://localhost:4443/moq")
	rawPath := envOr("MOQ_PATH", "live/room1")
	trackName := envOr("MOQ_TRACK", "video")
	publish := os.Getenv("MOQ_PUBLISH") != ""

	path, err := moq.ParsePath(rawPath)
	if err != nil {
		slog.Error("invalid path", "path", rawPath, "error", err)
		os.Exit(1)
	}

	slog.Info("moqc starting", "url", url, "path", path.String(), "track", trackName, "publish", publish)

	tlsConfig := &tls.Config{InsecureSkipVerify: os.Getenv("MOQ_INSECURE") != ""}
	sess, err := moq.Dial(ctx, url, tlsConfig, slog.Default())
	if err != nil {
		slog.Error("dial failed", "error", err)
		os.Exit(1)
	}
	defer sess.Close()

	g, ctx := errgroup.WithContext(ctx)

	if publish {
		broadcast := moq.NewBroadcast()
		track := broadcast.Subscribe(trackName, 0)
		if err := sess.Publish(path, broadcast); err != nil {
			slog.Error("publish failed", "error", err)
			os.Exit(1)
		}
		g.Go(func() error { return publishStdin(ctx, track) })
	} else {
		broadcast := sess.Consume(path)
		track := broadcast.Subscribe(trackName, 0)
		g.Go(func() error { return printGroups(ctx, track) })
	}

	g.Go(func() error {
		<-ctx.Done()
		return sess.Close()
	})

	if err := g.Wait(); err != nil {
		slog.Warn("moqc exiting", "error", err)
	}
}

// publishStdin turns each stdin line into its own single-frame group.
func publishStdin(ctx context.Context, track *moq.Track) error {
	scanner := bufio.NewScanner(os.Stdin)
	var sequence uint64
	for scanner.Scan() {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
		group, err := track.OpenGroup(sequence)
		if err != nil {
			return fmt.Errorf("open group: %w", err)
		}
		if err := group.WriteFrame(scanner.Bytes()); err != nil {
			return fmt.Errorf("write frame: %w", err)
		}
		group.Close()
		sequence++
	}
	track.Close(nil)
	return scanner.Err()
}

// printGroups reads every group on track and prints each frame.
func printGroups(ctx context.Context, track *moq.Track) error {
	for {
		group, ok := track.NextGroup()
		if !ok {
			return track.Err()
		}
		go func(g *moq.Group) {
			for {
				payload, ok := g.ReadFrame()
				if !ok {
					return
				}
				fmt.Printf("group=%d: %s\n", g.Sequence(), payload)
			}
		}(group)
	}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
