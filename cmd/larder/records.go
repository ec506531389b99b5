package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/docopt/docopt-go"
	"github.com/dukerupert/larder/internal/client"
	"github.com/dukerupert/larder/internal/config"
	"github.com/dukerupert/larder/internal/dispatch"
	"github.com/dukerupert/larder/internal/model"
)

func newClient() (*client.Client, error) {
	cfg, err := config.LoadClient()
	if err != nil {
		return nil, err
	}
	return client.New(cfg.URL, cfg.Token), nil
}

// parseAssignments turns name=value arguments into a form.
func parseAssignments(args []string) (dispatch.Form, error) {
	form := make(dispatch.Form, len(args))
	for _, a := range args {
		k, v, ok := strings.Cut(a, "=")
		k = strings.TrimSpace(k)
		if !ok || k == "" {
			return nil, fmt.Errorf("expected field=value, got %q", a)
		}
		if _, dup := form[k]; dup {
			return nil, fmt.Errorf("field %q given twice", k)
		}
		form[k] = v
	}
	return form, nil
}

func dispatcherFor(opts docopt.Opts) (*dispatch.Dispatcher, error) {
	name, _ := opts.String("<collection>")
	c, err := model.ParseCollection(name)
	if err != nil {
		return nil, err
	}
	cl, err := newClient()
	if err != nil {
		return nil, err
	}
	return dispatch.New(c, cl)
}

func formFrom(opts docopt.Opts) (dispatch.Form, error) {
	args, _ := opts["<assignment>"].([]string)
	return parseAssignments(args)
}

func add(ctx context.Context, opts docopt.Opts) error {
	d, err := dispatcherFor(opts)
	if err != nil {
		return err
	}
	form, err := formFrom(opts)
	if err != nil {
		return err
	}
	id, err := d.Create(ctx, form)
	if err != nil {
		return explain(err)
	}
	fmt.Println(id)
	return nil
}

func edit(ctx context.Context, opts docopt.Opts) error {
	d, err := dispatcherFor(opts)
	if err != nil {
		return err
	}
	form, err := formFrom(opts)
	if err != nil {
		return err
	}
	id, _ := opts.String("<id>")
	return explain(d.Update(ctx, id, form))
}

// remove asks for confirmation on in before deleting, unless --yes is set.
func remove(ctx context.Context, opts docopt.Opts, in io.Reader) error {
	d, err := dispatcherFor(opts)
	if err != nil {
		return err
	}
	id, _ := opts.String("<id>")
	collection, _ := opts.String("<collection>")

	conf := d.Confirmation()
	conf.RequestDelete(id)

	if yes, _ := opts.Bool("--yes"); !yes && !confirm(in, fmt.Sprintf("Delete %s %s? [y/N] ", collection, id)) {
		conf.Cancel()
		fmt.Println("cancelled")
		return nil
	}
	return explain(conf.Confirm(ctx))
}

func confirm(in io.Reader, prompt string) bool {
	fmt.Print(prompt)
	line, err := bufio.NewReader(in).ReadString('\n')
	if err != nil && line == "" {
		return false
	}
	switch strings.ToLower(strings.TrimSpace(line)) {
	case "y", "yes":
		return true
	}
	return false
}

func purchase(ctx context.Context, opts docopt.Opts) error {
	cl, err := newClient()
	if err != nil {
		return err
	}
	id, _ := opts.String("<id>")
	item, err := cl.Purchase(ctx, id)
	if err != nil {
		return explain(err)
	}
	state := "purchased"
	if item.AddedToInventory {
		state = "purchased and moved to inventory"
	}
	fmt.Printf("%s %s\n", item.Name, state)
	return nil
}

func recipes(ctx context.Context, opts docopt.Opts) error {
	cl, err := newClient()
	if err != nil {
		return err
	}
	words, _ := opts["<query>"].([]string)
	hits, err := cl.Recipes(ctx, strings.Join(words, " "))
	if err != nil {
		return explain(err)
	}
	if len(hits) == 0 {
		fmt.Println("no recipes found")
		return nil
	}
	for _, h := range hits {
		fmt.Printf("%s (%s)\n  %s\n", h.Label, h.Source, h.URL)
		for _, line := range h.IngredientLines {
			fmt.Printf("  - %s\n", line)
		}
	}
	return nil
}

// explain rewrites validation failures the way a form would show them.
func explain(err error) error {
	var ve *dispatch.ValidationError
	if errors.As(err, &ve) {
		return fmt.Errorf("%s %s", ve.Field, ve.Message)
	}
	if client.IsNotFound(err) {
		return fmt.Errorf("not found")
	}
	return err
}
