package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"time"

	"rewards-backend/client"
	"rewards-backend/services"
)

const usage = `usage: epochctl [flags] <command> [args]

commands:
  build              build the next epoch (or -epoch N)
  latest             show the latest epoch
  list               list every epoch
  show               show epoch -epoch N
  verify WALLET...   fetch and verify the claim ticket of each wallet in -epoch N
  ticket ENCODED     decode and verify an encoded ticket offline
`

func envDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func main() {
	fs := flag.NewFlagSet("epochctl", flag.ExitOnError)
	baseURL := fs.String("url", envDefault("REWARDS_URL", "http://localhost:3001"), "rewardsd base URL")
	apiKey := fs.String("key", os.Getenv("REWARDS_API_KEY"), "API key")
	epoch := fs.Uint64("epoch", 0, "epoch number (0 means unset)")
	timeout := fs.Duration("timeout", 30*time.Second, "request timeout")
	fs.Usage = func() {
		fmt.Fprint(fs.Output(), usage)
		fs.PrintDefaults()
	}
	_ = fs.Parse(os.Args[1:])
	if fs.NArg() == 0 {
		fs.Usage()
		os.Exit(2)
	}

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	c := client.New(*baseURL, *apiKey)
	if err := run(ctx, c, fs.Arg(0), fs.Args()[1:], *epoch); err != nil {
		fmt.Fprintln(os.Stderr, "epochctl:", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, c *client.Client, cmd string, args []string, epoch uint64) error {
	switch cmd {
	case "build":
		var target *uint64
		if epoch != 0 {
			target = &epoch
		}
		snap, err := c.BuildEpoch(ctx, target)
		if err != nil {
			return err
		}
		return printJSON(snap)
	case "latest":
		snap, err := c.LatestEpoch(ctx)
		if err != nil {
			return err
		}
		return printJSON(snap)
	case "list":
		snaps, err := c.ListEpochs(ctx)
		if err != nil {
			return err
		}
		for _, s := range snaps {
			fmt.Printf("%d\t%s\t%d\n", s.Epoch, s.Root, s.LeafCount)
		}
		return nil
	case "show":
		if epoch == 0 {
			return fmt.Errorf("show needs -epoch")
		}
		snap, err := c.GetEpoch(ctx, epoch)
		if err != nil {
			return err
		}
		fmt.Printf("epoch %d\nroot %s\nleaves %d\ncreated %s\n",
			snap.Epoch, snap.Root, snap.LeafCount, time.Unix(0, int64(snap.CreatedAt)).UTC().Format(time.RFC3339))
		return nil
	case "verify":
		if epoch == 0 || len(args) == 0 {
			return fmt.Errorf("verify needs -epoch and at least one wallet")
		}
		failed := 0
		for _, w := range args {
			t, err := c.Ticket(ctx, epoch, w)
			switch {
			case err != nil:
				failed++
				fmt.Printf("%s\terror\t%v\n", w, err)
			case !t.Verify():
				failed++
				fmt.Printf("%s\tinvalid\tindex=%d amount=%d\n", w, t.Index, t.Amount)
			default:
				fmt.Printf("%s\tok\tindex=%d amount=%d proof=%d\n", w, t.Index, t.Amount, len(t.Proof))
			}
		}
		if failed > 0 {
			return fmt.Errorf("%d of %d tickets failed", failed, len(args))
		}
		return nil
	case "ticket":
		if len(args) != 1 {
			return fmt.Errorf("ticket needs one encoded ticket")
		}
		t, err := services.DecodeTicket(args[0])
		if err != nil {
			return err
		}
		if err := printJSON(t); err != nil {
			return err
		}
		if !t.Verify() {
			return fmt.Errorf("ticket does not verify against root %s", t.Root)
		}
		return nil
	}
	return fmt.Errorf("unknown command %q", cmd)
}

func printJSON(v interface{}) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
