// ragctl is the operator CLI for the department-scoped knowledge base:
// ingest documents, run queries, and manage versions.
package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/coragem/retrieval"
	"github.com/coragem/retrieval/config"
	"github.com/coragem/retrieval/identity"
	"github.com/coragem/retrieval/ingestion"
	"github.com/coragem/retrieval/rag"
)

var (
	flagConfig string
	flagToken  string
)

func main() {
	root := &cobra.Command{
		Use:           "ragctl",
		Short:         "Department-scoped knowledge base control",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&flagConfig, "config", "config.yaml", "path to YAML config file")
	root.PersistentFlags().StringVar(&flagToken, "token", "", "caller access token (or RAG_TOKEN env)")

	root.AddCommand(ingestCmd(), queryCmd(), documentsCmd(), deactivateCmd(), tokenCmd())

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

// withApp loads config, wires the application, and resolves the caller.
func withApp(cmd *cobra.Command, run func(a *app, caller retrieval.Identity) error) error {
	cfg, err := config.Load(flagConfig)
	if err != nil {
		return err
	}
	a, err := buildApp(cmd.Context(), cfg)
	if err != nil {
		return err
	}
	defer a.close()

	token := flagToken
	if token == "" {
		token = os.Getenv("RAG_TOKEN")
	}
	if token == "" {
		return fmt.Errorf("%w: no access token provided", retrieval.ErrPermissionDenied)
	}
	caller, err := a.verifier.Verify(token)
	if err != nil {
		return err
	}

	return run(a, caller)
}

func ingestCmd() *cobra.Command {
	var (
		title      string
		docType    string
		sourceURL  string
		department string
	)

	cmd := &cobra.Command{
		Use:   "ingest [file]",
		Short: "Ingest a document as a new active version",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, func(a *app, caller retrieval.Identity) error {
				content, err := os.ReadFile(args[0])
				if err != nil {
					return err
				}
				if title == "" {
					title = args[0]
				}

				doc, err := a.ingestion.Ingest(cmd.Context(), caller, ingestion.Request{
					Title:            title,
					Content:          string(content),
					DocType:          docType,
					SourceURL:        sourceURL,
					TargetDepartment: department,
				})
				if err != nil {
					return err
				}

				fmt.Printf("ingested %q version %d (%d chunks) into %s\nid: %s\n",
					doc.Title, doc.Version, doc.ChunkCount, doc.Department, doc.ID)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&title, "title", "", "document title (defaults to the file name)")
	cmd.Flags().StringVar(&docType, "type", "document", "document type")
	cmd.Flags().StringVar(&sourceURL, "source-url", "", "origin URL of the document")
	cmd.Flags().StringVar(&department, "department", "", "target department (admins only)")
	return cmd
}

func queryCmd() *cobra.Command {
	var department string

	cmd := &cobra.Command{
		Use:   "query [question...]",
		Short: "Answer a question from the caller's department knowledge",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, func(a *app, caller retrieval.Identity) error {
				result, err := a.rag.Query(cmd.Context(), caller, rag.Request{
					Query:            strings.Join(args, " "),
					TargetDepartment: department,
				})
				if err != nil {
					return err
				}

				fmt.Println(result.Answer)
				if len(result.Sources) > 0 {
					fmt.Println("\nsources:")
					for _, s := range result.Sources {
						fmt.Printf("  - %s (chunk %d, score %.2f)\n", s.Title, s.ChunkIndex, s.Score)
					}
				}
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&department, "department", "", "target department (admins only)")
	return cmd
}

func documentsCmd() *cobra.Command {
	var (
		department string
		limit      int
	)

	cmd := &cobra.Command{
		Use:   "documents",
		Short: "List document versions, newest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, func(a *app, caller retrieval.Identity) error {
				docs, err := a.ingestion.ListDocuments(cmd.Context(), caller, department, limit)
				if err != nil {
					return err
				}

				for _, d := range docs {
					state := "inactive"
					if d.IsActive {
						state = "active"
					}
					fmt.Printf("%s  v%d  %-8s  %s\n", d.ID, d.Version, state, d.Title)
				}
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&department, "department", "", "target department (admins only)")
	cmd.Flags().IntVar(&limit, "limit", 0, "maximum rows to return")
	return cmd
}

func deactivateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "deactivate [doc-id]",
		Short: "Retire a document version from search",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, func(a *app, caller retrieval.Identity) error {
				if err := a.ingestion.Deactivate(cmd.Context(), caller, args[0]); err != nil {
					return err
				}
				fmt.Println("deactivated", args[0])
				return nil
			})
		},
	}
}

func tokenCmd() *cobra.Command {
	var (
		userID     string
		department string
		role       string
	)

	issue := &cobra.Command{
		Use:   "issue",
		Short: "Issue an access token (requires the signing secret)",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(flagConfig)
			if err != nil {
				return err
			}
			verifier, err := identity.New(identity.Config{
				Secret: config.Secret(cfg.Auth.SecretEnv),
				Issuer: cfg.Auth.Issuer,
			})
			if err != nil {
				return err
			}

			token, err := verifier.Issue(retrieval.Identity{
				UserID:     userID,
				Department: department,
				Role:       retrieval.Role(role),
			})
			if err != nil {
				return err
			}
			fmt.Println(token)
			return nil
		},
	}
	issue.Flags().StringVar(&userID, "user", "", "user ID (sub claim)")
	issue.Flags().StringVar(&department, "department", "", "caller department")
	issue.Flags().StringVar(&role, "role", string(retrieval.RoleEmployee), "role: employee, manager, or admin")
	_ = issue.MarkFlagRequired("user")
	_ = issue.MarkFlagRequired("department")

	cmd := &cobra.Command{
		Use:   "token",
		Short: "Token utilities",
	}
	cmd.AddCommand(issue)
	return cmd
}
