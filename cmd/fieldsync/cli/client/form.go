package client

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/mwantia/fieldsync/internal/session"
	"github.com/mwantia/fieldsync/pkg/bridge"
	"github.com/mwantia/fieldsync/pkg/renderer"
	"github.com/mwantia/fieldsync/pkg/schema"
	"github.com/spf13/cobra"
)

func NewFormCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "form",
		Short: "Open, replay or inspect forms",
		Long:  "Open a form schema in the renderer, replay recorded bridge messages or list the file fields a schema declares.",
	}

	cmd.AddCommand(NewFormOpenCommand())
	cmd.AddCommand(NewFormReplayCommand())
	cmd.AddCommand(NewFormDiscoverCommand())

	return cmd
}

func NewFormOpenCommand() *cobra.Command {
	var recordID string

	cmd := &cobra.Command{
		Use:   "open <schema>",
		Short: "Open a form for a record",
		Long: `Open the form schema in the headless renderer for the given record and
reconcile the upload queue once the form is submitted or saved as draft.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			doc, err := schema.Load(args[0])
			if err != nil {
				return err
			}

			a, err := newAgent()
			if err != nil {
				return err
			}
			defer a.Shutdown()

			ctx := cmd.Context()
			s, err := a.NewSession(ctx, recordID, doc, writerReporter{out: cmd.ErrOrStderr()})
			if err != nil {
				return err
			}

			logger, err := a.Logger(ctx, "renderer")
			if err != nil {
				return err
			}
			host, err := renderer.NewHost(ctx, a.Config().Renderer, logger)
			if err != nil {
				return err
			}
			defer host.Close()

			return run(ctx, cmd, s, host)
		},
	}

	cmd.Flags().StringVarP(&recordID, "record", "r", "", "record identifier the form belongs to")
	cmd.MarkFlagRequired("record")

	return cmd
}

func NewFormReplayCommand() *cobra.Command {
	var recordID string

	cmd := &cobra.Command{
		Use:   "replay <schema> <messages>",
		Short: "Replay recorded bridge messages",
		Long: `Derive the discovery messages from the schema and feed them, followed by
every line of the messages file, through a session for the given record.
Each line of the messages file is one raw bridge post.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			doc, err := schema.Load(args[0])
			if err != nil {
				return err
			}
			posts, err := readPosts(args[1])
			if err != nil {
				return err
			}

			a, err := newAgent()
			if err != nil {
				return err
			}
			defer a.Shutdown()

			ctx := cmd.Context()
			s, err := a.NewSession(ctx, recordID, doc, writerReporter{out: cmd.ErrOrStderr()})
			if err != nil {
				return err
			}

			replay := renderer.NewReplay(len(schema.Discover(doc)) + len(posts) + 1)
			if err := s.Load(ctx, replay); err != nil {
				return err
			}
			for _, post := range posts {
				if err := replay.Post(ctx, post); err != nil {
					return err
				}
			}
			replay.Close()

			return wait(ctx, cmd, s, replay)
		},
	}

	cmd.Flags().StringVarP(&recordID, "record", "r", "", "record identifier the form belongs to")
	cmd.MarkFlagRequired("record")

	return cmd
}

func NewFormDiscoverCommand() *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "discover <schema>",
		Short: "List the file fields of a schema",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			doc, err := schema.Load(args[0])
			if err != nil {
				return err
			}

			messages := schema.Discover(doc)
			out := cmd.OutOrStdout()

			if asJSON {
				for _, msg := range messages {
					raw, err := bridge.Encode(msg)
					if err != nil {
						return err
					}
					fmt.Fprintln(out, string(raw))
				}
				return nil
			}

			w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "KIND\tKEY\tGRID\tLABEL\tMULTIPLE\tREQUIRED\tCONDITION")
			for _, msg := range messages {
				switch msg.Kind {
				case bridge.KindDatagrid:
					g := msg.Grid
					fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%t\t%t\t\n", msg.Kind, g.GridComponents, g.GridKey, g.Label, g.Multiple, g.Required)
				case bridge.KindComponent:
					f := msg.Field
					fmt.Fprintf(w, "%s\t%s\t\t%s\t%t\t%t\t%s\n", msg.Kind, f.Key, f.Label, f.Multiple, f.Required, f.Condition)
				}
			}
			return w.Flush()
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "print the discovery messages as bridge posts")

	return cmd
}

func run(ctx context.Context, cmd *cobra.Command, s *session.Session, r renderer.Renderer) error {
	if err := s.Load(ctx, r); err != nil {
		return err
	}
	return wait(ctx, cmd, s, r)
}

func wait(ctx context.Context, cmd *cobra.Command, s *session.Session, r renderer.Renderer) error {
	result, err := s.Run(ctx, r.Messages())
	if err != nil {
		return err
	}
	if result == nil {
		return fmt.Errorf("renderer closed before the form was submitted")
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "State:       %s\n", result.State)
	fmt.Fprintf(out, "Descriptors: %d\n", result.Report.Descriptors)
	fmt.Fprintf(out, "Files:       %d\n", result.Report.Files)
	fmt.Fprintf(out, "Purged:      %d\n", result.Report.Purged)
	if n := len(result.Report.Failures); n > 0 {
		fmt.Fprintf(out, "Failures:    %d\n", n)
	}

	if result.Handoff != nil {
		data, err := json.MarshalIndent(result.Handoff, "", "  ")
		if err != nil {
			return err
		}
		fmt.Fprintln(out, string(data))
	}
	return nil
}

func readPosts(path string) ([][]byte, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open messages file: %w", err)
	}
	defer file.Close()

	var posts [][]byte
	scanner := bufio.NewScanner(file)
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	for scanner.Scan() {
		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 {
			continue
		}
		posts = append(posts, append([]byte(nil), line...))
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read messages file: %w", err)
	}
	return posts, nil
}
