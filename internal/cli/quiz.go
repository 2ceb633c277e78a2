package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"medquiz-service/internal/config"
	"medquiz-service/internal/customquiz"
	"medquiz-service/internal/domain"
	"medquiz-service/internal/identity"
)

// NewQuizCmd groups the custom quiz admin commands. They talk to the
// configured store directly, without a running server.
func NewQuizCmd(configPath *string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "quiz",
		Short: "Manage custom quizzes",
	}
	cmd.AddCommand(newQuizCreateCmd(configPath))
	cmd.AddCommand(newQuizShowCmd(configPath))
	cmd.AddCommand(newQuizLeaderboardCmd(configPath))
	cmd.AddCommand(newQuizListCmd(configPath))
	return cmd
}

func newQuizCreateCmd(configPath *string) *cobra.Command {
	var file, creatorID, creatorName string
	cmd := &cobra.Command{
		Use:   "create -f draft.yaml",
		Short: "Create a custom quiz from a YAML draft",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := os.Open(file)
			if err != nil {
				return err
			}
			defer f.Close()
			draft, err := customquiz.ReadDraft(f)
			if err != nil {
				return err
			}

			creator := identity.Anonymous()
			if creatorID != "" {
				creator = domain.User{ID: creatorID, Name: creatorName}
			}
			return withQuizStore(cmd.Context(), *configPath, func(cfg config.Config, store *customquiz.Store) error {
				quiz, err := store.Save(cmd.Context(), draft, creator)
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				fmt.Fprintf(out, "created quiz %s (%d questions)\n", quiz.ID, quiz.QuestionCount)
				fmt.Fprintf(out, "share: %s\n", customquiz.ShareURL(cfg.Server.PublicBaseURL, quiz.ID))
				return nil
			})
		},
	}
	cmd.Flags().StringVarP(&file, "file", "f", "", "YAML draft file")
	cmd.Flags().StringVar(&creatorID, "creator", "", "creator user id (anonymous when empty)")
	cmd.Flags().StringVar(&creatorName, "creator-name", "", "creator display name")
	_ = cmd.MarkFlagRequired("file")
	return cmd
}

// quizSummary is the YAML rendering of a stored quiz.
type quizSummary struct {
	ID                 string            `yaml:"id"`
	Title              string            `yaml:"title"`
	CreatorName        string            `yaml:"creatorName"`
	CreatedAt          string            `yaml:"createdAt"`
	SecondsPerQuestion int               `yaml:"secondsPerQuestion"`
	Participants       int               `yaml:"participants"`
	Questions          []domain.Question `yaml:"questions"`
}

func newQuizShowCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "show <id>",
		Short: "Print a custom quiz as YAML",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withQuizStore(cmd.Context(), *configPath, func(_ config.Config, store *customquiz.Store) error {
				quiz, err := store.Get(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				enc := yaml.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent(2)
				defer enc.Close()
				return enc.Encode(quizSummary{
					ID:                 quiz.ID,
					Title:              quiz.Title,
					CreatorName:        quiz.CreatorName,
					CreatedAt:          quiz.CreatedAt.Format(time.RFC3339),
					SecondsPerQuestion: quiz.SecondsPerQuestion,
					Participants:       len(quiz.Participants),
					Questions:          quiz.Questions,
				})
			})
		},
	}
}

func newQuizLeaderboardCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "leaderboard <id>",
		Short: "Print the ranked participants of a custom quiz",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withQuizStore(cmd.Context(), *configPath, func(_ config.Config, store *customquiz.Store) error {
				board, err := store.Leaderboard(cmd.Context(), args[0], "")
				if err != nil {
					return err
				}
				printLeaderboard(cmd.OutOrStdout(), board)
				return nil
			})
		},
	}
}

func printLeaderboard(out io.Writer, board domain.Leaderboard) {
	fmt.Fprintf(out, "%s (%d questions)\n", board.Title, board.Total)
	if len(board.Entries) == 0 {
		fmt.Fprintln(out, "no attempts yet")
		return
	}
	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "RANK\tNAME\tSCORE\tPERCENT\tCOMPLETED")
	for _, e := range board.Entries {
		fmt.Fprintf(tw, "%d\t%s\t%d/%d\t%d%%\t%s\n", e.Rank, e.DisplayName, e.Score, e.Total, e.Percentage, e.CompletedAt.Format(time.RFC3339))
	}
	tw.Flush()
}

func newQuizListCmd(configPath *string) *cobra.Command {
	var creatorID string
	cmd := &cobra.Command{
		Use:   "list --creator <id>",
		Short: "List the quizzes authored by a user",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withQuizStore(cmd.Context(), *configPath, func(_ config.Config, store *customquiz.Store) error {
				quizzes, err := store.ListByCreator(cmd.Context(), creatorID)
				if err != nil {
					return err
				}
				tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
				fmt.Fprintln(tw, "ID\tTITLE\tQUESTIONS\tATTEMPTS")
				for _, q := range quizzes {
					fmt.Fprintf(tw, "%s\t%s\t%d\t%d\n", q.ID, q.Title, len(q.Questions), len(q.Participants))
				}
				return tw.Flush()
			})
		},
	}
	cmd.Flags().StringVar(&creatorID, "creator", "", "creator user id")
	_ = cmd.MarkFlagRequired("creator")
	return cmd
}

func withQuizStore(ctx context.Context, configPath string, fn func(config.Config, *customquiz.Store) error) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	b, err := openBackend(ctx, cfg)
	if err != nil {
		return err
	}
	defer b.close()
	return fn(cfg, customquiz.NewStore(b.docs))
}
