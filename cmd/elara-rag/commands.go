package main

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/applymytech/openElara/internal/assembler"
	"github.com/applymytech/openElara/internal/docstore"
	"github.com/applymytech/openElara/internal/ingest"
)

// collectionArgs requires <collection> <storage_root> ahead of any
// command-specific arguments.
func collectionArgs(_ *cobra.Command, args []string) error {
	if len(args) < 2 {
		return errInsufficientArgs
	}
	return nil
}

// action is the body of a one-shot command. Its result is printed as JSON.
type action func(ctx context.Context, e *env, collection string, rest []string) (any, error)

// collectionCmd builds a command taking <collection> <storage_root> [args...].
func (c *cli) collectionCmd(use, short string, fn action) *cobra.Command {
	name, _, _ := strings.Cut(use, " ")
	return &cobra.Command{
		Use:     use,
		Short:   short,
		Args:    collectionArgs,
		Aliases: aliases(name),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			e, err := c.open(ctx, args[1], false)
			if err != nil {
				return err
			}
			defer closeEnv(ctx, e)

			out, err := fn(ctx, e, args[0], args[2:])
			if err != nil {
				return err
			}
			return writeJSON(c.stdout, out)
		},
	}
}

// aliases returns the hyphenated form of an underscore command name.
func aliases(name string) []string {
	if alt := strings.ReplaceAll(name, "_", "-"); alt != name {
		return []string{alt}
	}
	return nil
}

func searchCmd(c *cli) *cobra.Command {
	return c.collectionCmd(
		"search <collection> <storage_root> <token_limit> [n_results] [persona]",
		"Similarity search packed to a token budget (query on stdin)",
		func(ctx context.Context, e *env, collection string, rest []string) (any, error) {
			req, err := c.parseSearch(rest)
			if err != nil {
				return nil, err
			}
			req.Collection = collection
			return e.asm.SearchKnowledge(ctx, req), nil
		},
	)
}

// parseSearch accepts both argument forms:
//
//	<token_limit> [n_results] [persona]          query on stdin
//	<query> <token_limit> [n_results] [persona]  legacy
//
// The first form applies exactly when the first argument is all digits.
func (c *cli) parseSearch(rest []string) (assembler.SearchRequest, error) {
	var req assembler.SearchRequest
	if len(rest) == 0 {
		return req, fmt.Errorf("search requires token_limit")
	}

	if isDigits(rest[0]) {
		raw, err := c.readStdin()
		if err != nil {
			return req, err
		}
		req.Query = strings.TrimSpace(string(raw))
	} else {
		if len(rest) < 2 {
			return req, fmt.Errorf("Invalid arguments. Expected token_limit, but got a string: '%s'. The token_limit argument is likely missing.", rest[0])
		}
		req.Query = rest[0]
		rest = rest[1:]
	}

	budget, err := intArg("token_limit", rest[0])
	if err != nil {
		return req, err
	}
	req.TokenBudget = budget
	if len(rest) > 1 {
		if req.NResults, err = intArg("n_results", rest[1]); err != nil {
			return req, err
		}
	}
	if len(rest) > 2 {
		persona := rest[2]
		req.Persona = &persona
	}
	return req, nil
}

func recentTurnsCmd(c *cli) *cobra.Command {
	return c.collectionCmd(
		"get_recent_turns <collection> <storage_root> <n_turns> <token_limit> [persona]",
		"Most recent chat turns, oldest first, packed to a token budget",
		func(ctx context.Context, e *env, _ string, rest []string) (any, error) {
			if len(rest) < 2 {
				return nil, fmt.Errorf("get_recent_turns requires n_turns and token_limit")
			}
			n, err := intArg("n_turns", rest[0])
			if err != nil {
				return nil, err
			}
			budget, err := intArg("token_limit", rest[1])
			if err != nil {
				return nil, err
			}
			req := assembler.RecentTurnsRequest{NTurns: n, TokenBudget: budget}
			if len(rest) > 2 {
				persona := rest[2]
				req.Persona = &persona
			}
			return e.asm.RecentTurns(ctx, req), nil
		},
	)
}

func listItemsCmd(c *cli) *cobra.Command {
	return c.collectionCmd(
		"list_items <collection> <storage_root>",
		"Page through a collection (JSON options on stdin)",
		func(ctx context.Context, e *env, collection string, _ []string) (any, error) {
			raw, err := c.readStdin()
			if err != nil {
				return nil, err
			}
			var req assembler.ListRequest
			if payload := strings.TrimSpace(string(raw)); payload != "" {
				if err := json.Unmarshal([]byte(payload), &req); err != nil {
					return nil, fmt.Errorf("invalid list_items payload: %w", err)
				}
			}
			req.Collection = collection
			return e.asm.ListItems(ctx, req), nil
		},
	)
}

func countCmd(c *cli) *cobra.Command {
	return c.collectionCmd(
		"get_collection_count <collection> <storage_root>",
		"Number of documents in a collection",
		func(ctx context.Context, e *env, collection string, _ []string) (any, error) {
			return e.asm.Count(ctx, collection)
		},
	)
}

func deleteItemsCmd(c *cli) *cobra.Command {
	return c.collectionCmd(
		"delete_items <collection> <storage_root>",
		"Delete documents by id (JSON id array on stdin)",
		func(ctx context.Context, e *env, collection string, _ []string) (any, error) {
			raw, err := c.readStdin()
			if err != nil {
				return nil, err
			}
			var ids []string
			if err := json.Unmarshal(raw, &ids); err != nil {
				return nil, fmt.Errorf("invalid id list: %w", err)
			}
			return e.asm.DeleteByIDs(ctx, collection, ids), nil
		},
	)
}

func deleteSourceCmd(c *cli) *cobra.Command {
	return c.collectionCmd(
		"delete_source <collection> <storage_root>",
		"Delete every chunk from one source file (filename on stdin)",
		func(ctx context.Context, e *env, collection string, _ []string) (any, error) {
			raw, err := c.readStdin()
			if err != nil {
				return nil, err
			}
			return e.asm.DeleteBySource(ctx, collection, strings.TrimSpace(string(raw))), nil
		},
	)
}

func clearCollectionCmd(c *cli) *cobra.Command {
	return c.collectionCmd(
		"clear_collection <collection> <storage_root>",
		"Delete and recreate a collection",
		func(ctx context.Context, e *env, collection string, _ []string) (any, error) {
			return e.asm.ClearCollection(ctx, collection), nil
		},
	)
}

func saveTurnCmd(c *cli) *cobra.Command {
	return c.collectionCmd(
		"save_chat_turn <collection> <storage_root>",
		"Store one chat turn (turn JSON on stdin)",
		func(ctx context.Context, e *env, _ string, _ []string) (any, error) {
			raw, err := c.readStdin()
			if err != nil {
				return nil, err
			}
			return e.asm.AddChatTurn(ctx, raw), nil
		},
	)
}

func ingestCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "ingest <knowledge_dir> <storage_root>",
		Short: "Chunk markdown files from a directory into knowledge_base",
		Args: func(_ *cobra.Command, args []string) error {
			if len(args) < 2 {
				return fmt.Errorf("ingest requires knowledge_dir and storage_root")
			}
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			e, err := c.open(ctx, args[1], false)
			if err != nil {
				return err
			}
			defer closeEnv(ctx, e)

			in := ingest.New(e.client, e.cfg.Ingest,
				ingest.WithLogger(e.logger),
				ingest.WithMetrics(e.metrics),
				ingest.WithTracer(e.tracer),
			)
			res, err := in.Dir(ctx, args[0])
			if err != nil {
				return err
			}
			e.logger.Info("ingestion complete",
				"collection", docstore.KnowledgeBase,
				"files", res.Files,
				"chunks", res.Chunks,
			)
			return writeJSON(c.stdout, res)
		},
	}
}

func intArg(name, s string) (int, error) {
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: expected an integer", name, s)
	}
	return n, nil
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
