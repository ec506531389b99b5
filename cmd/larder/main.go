package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/docopt/docopt-go"
)

const version = "0.1.0"

const usage = `Larder: shopping list, pantry, budget and price tracker.

Usage:
    larder serve
    larder token create <name>
    larder watch <collection> [--filter=<query>] [--sort=<key>]
        [--threshold=<n>] [--days=<n>]
    larder add <collection> <assignment>...
    larder edit <collection> <id> <assignment>...
    larder rm <collection> <id> [--yes]
    larder purchase <id>
    larder recipes <query>...
    larder vapid-keys
    larder backup (create | list)
    larder backup restore <key>
    larder -h | --help
    larder --version

Collections are shopping, inventory, budget and prices. Assignments look like
name=Eggs or quantity=12; an empty value (category=) clears an optional field.

Backups are sealed with LARDER_BACKUP_PASSPHRASE and stored in the S3 bucket.
Stop the server before a restore.

Server settings come from LARDER_* environment variables. Client commands
reach LARDER_URL (default http://localhost:8080) with LARDER_TOKEN.

Options:
    -h --help          Show this screen.
    --version          Show version.
    --filter=<query>   Only show records matching the query.
    --sort=<key>       Sort by a field, e.g. name or price.
    --threshold=<n>    Low-stock threshold.
    --days=<n>         Expiring-soon window in days.
    --yes              Delete without asking.`

var errLog = log.New(os.Stderr, "larder: ", 0)

func main() {
	opts, err := docopt.ParseArgs(usage, os.Args[1:], version)
	if err != nil {
		errLog.Fatal(err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, opts); err != nil {
		stop()
		errLog.Fatal(err)
	}
}

func run(ctx context.Context, opts docopt.Opts) error {
	if serve_, _ := opts.Bool("serve"); serve_ {
		return serve(ctx)
	} else if token_, _ := opts.Bool("token"); token_ {
		name, _ := opts.String("<name>")
		return createToken(name)
	} else if vapid_, _ := opts.Bool("vapid-keys"); vapid_ {
		return vapidKeys()
	} else if backup_, _ := opts.Bool("backup"); backup_ {
		return runBackup(ctx, opts)
	} else if watch_, _ := opts.Bool("watch"); watch_ {
		return watch(ctx, opts)
	} else if add_, _ := opts.Bool("add"); add_ {
		return add(ctx, opts)
	} else if edit_, _ := opts.Bool("edit"); edit_ {
		return edit(ctx, opts)
	} else if rm_, _ := opts.Bool("rm"); rm_ {
		return remove(ctx, opts, os.Stdin)
	} else if purchase_, _ := opts.Bool("purchase"); purchase_ {
		return purchase(ctx, opts)
	} else if recipes_, _ := opts.Bool("recipes"); recipes_ {
		return recipes(ctx, opts)
	}
	return fmt.Errorf("unknown command")
}
