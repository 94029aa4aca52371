// sage is the demo CLI for the tutoring context engine. It runs a
// scripted tutoring session against a mock provider so the foveation
// pipeline can be watched end to end without credentials, and exposes a
// reading-window preview for document Q&A.
package main

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"sage/internal/config"
	"sage/internal/curriculum"
	"sage/internal/expansion"
	"sage/internal/fov"
	"sage/internal/llm"
	"sage/internal/reading"
	"sage/internal/summarize"
	"sage/internal/utils"
)

var (
	cyan   = color.New(color.FgCyan).SprintFunc()
	green  = color.New(color.FgGreen).SprintFunc()
	yellow = color.New(color.FgYellow).SprintFunc()
	gray   = color.New(color.FgHiBlack).SprintFunc()
	bold   = color.New(color.Bold).SprintFunc()
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var configPath string

	root := &cobra.Command{
		Use:   "sage",
		Short: "Context-window assembly engine for a voice tutoring agent",
		Long: "sage assembles budget-bounded LLM context from four scoped buffers\n" +
			"(immediate, working, episodic, semantic), expands it on low-confidence\n" +
			"answers, and builds reading windows for document playback Q&A.",
		SilenceUsage: true,
	}
	root.PersistentFlags().StringVar(&configPath, "config", "", "path to sage.yaml")

	root.AddCommand(newDemoCmd(&configPath))
	root.AddCommand(newReadCmd(&configPath))
	return root
}

func newDemoCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "demo",
		Short: "Run a scripted tutoring session against a mock provider",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(*configPath)
			if err != nil {
				return err
			}
			return runDemo(cmd.Context(), cfg)
		},
	}
}

func runDemo(ctx context.Context, cfg *config.EngineConfig) error {
	logger := utils.NewComponentLogger("Demo")

	course, err := loadOrSampleCurriculum(cfg.CurriculumDir, logger)
	if err != nil {
		return err
	}
	store := curriculum.NewStore()
	store.SetCurriculum(course)
	if err := store.SelectTopic(0); err != nil {
		return err
	}

	client := llm.NewMockClient(cfg.LLM.Model,
		"Mitosis is how one cell becomes two identical cells. It runs through four phases in order.",
		"I'm not sure about that, it may come up later in the course.",
		"Now I can say more: meiosis differs from mitosis by halving the chromosome count to make gametes.",
		"Good question! Chromosomes line up at the cell equator during metaphase.",
	)

	registry := llm.NewWindowRegistry(cfg.ModelWindows, 0)
	window := cfg.ContextWindow
	if window <= 0 {
		window = registry.ContextWindowFor(cfg.LLM.Model)
	}
	summarizer := summarize.NewSummarizer(client)
	asm := fov.NewAssembler(window,
		fov.WithCondenser(summarizer),
		fov.WithWindowLookup(registry.ContextWindowFor))
	coord := expansion.NewCoordinator(asm, store)
	if !cfg.ExpansionEnabled {
		coord.SetEnabled(false)
	}

	topic, _, _ := store.CurrentTopic()
	syncTopic(asm, course, topic, 0)

	budget := asm.BudgetConfig()
	fmt.Printf("%s model=%s window=%d tier=%s retention=%d\n\n",
		bold("session"), cfg.LLM.Model, budget.ContextWindow, budget.Tier, budget.TurnRetention)

	questions := []string{
		"What is mitosis?",
		"How is that different from meiosis?",
		"So what happens after the expansion?",
	}
	var history []llm.Message
	for _, question := range questions {
		history = append(history, llm.Message{Role: llm.RoleUser, Content: question})
		answer, err := completeTurn(ctx, client, coord, history, "")
		if err != nil {
			return err
		}
		history = append(history, llm.Message{Role: llm.RoleAssistant, Content: answer})
		fmt.Printf("%s %s\n%s %s\n", cyan("student:"), question, green("tutor:  "), answer)

		asm.RecordUserQuestion(fov.UserQuestion{Question: question, At: time.Now()})
		if rec := coord.AnalyzeResponseConfidence(answer); rec.ShouldExpand {
			fmt.Printf("%s scope=%s (%s)\n", yellow("expand: "), rec.Scope, rec.Reason)
			if coord.ExpandContext(question, rec.Scope) {
				fmt.Printf("%s working buffer widened for the next turn\n", gray("        "))
			}
		}
		fmt.Println()
	}

	// A barge-in mid-playback: the interrupted segment grounds the reply.
	if topic != nil && len(topic.Transcript) > 1 {
		seg := topic.Transcript[1]
		utterance := "wait, say that part again?"
		fmt.Printf("%s %s\n", cyan("student:"), utterance+" "+gray("(interrupting)"))
		messages := coord.HandleBargeIn(utterance, fov.Segment{ID: seg.ID, Index: seg.Index, Text: seg.Text}, history)
		answer, err := chat(ctx, client, messages)
		if err != nil {
			return err
		}
		fmt.Printf("%s %s\n\n", green("tutor:  "), answer)
	}

	fc := asm.BuildContext(nil, "")
	fmt.Printf("%s ~%d tokens (immediate %d / working %d / episodic %d / semantic %d)\n",
		bold("context"), fc.EstimatedTokens,
		budget.Immediate, budget.Working, budget.Episodic, budget.Semantic)
	return nil
}

func completeTurn(ctx context.Context, client llm.Client, coord *expansion.Coordinator, history []llm.Message, bargeIn string) (string, error) {
	return chat(ctx, client, coord.BuildFoveatedMessages(history, bargeIn))
}

func chat(ctx context.Context, client llm.Client, messages []llm.Message) (string, error) {
	stream, err := client.ChatStream(ctx, &llm.ChatRequest{
		Model:    client.Model(),
		Messages: messages,
		Stream:   true,
	})
	if err != nil {
		return "", err
	}
	return llm.CollectStream(stream)
}

// syncTopic pushes one topic's material into the working and semantic
// buffers, the per-topic half of what a session controller does on
// every topic change.
func syncTopic(asm *fov.Assembler, course *curriculum.Curriculum, topic *curriculum.Topic, index int) {
	if topic == nil {
		return
	}
	glossary := make([]string, 0, len(topic.Glossary))
	for _, term := range topic.Glossary {
		glossary = append(glossary, term.Term+" — "+term.Definition)
	}
	asm.UpdateWorkingBuffer(fov.WorkingContent{
		Title:          topic.Title,
		Body:           topic.TranscriptText(),
		Objectives:     topic.Objectives,
		Glossary:       glossary,
		Misconceptions: topic.Misconceptions,
		Alternatives:   topic.Alternatives,
	})
	asm.UpdateSemanticBuffer(course.OutlineText(), fov.Position{
		Title: topic.Title,
		Index: index,
		Total: len(course.Topics),
		Unit:  topic.Unit,
	}, topic.Dependencies)
}

func loadOrSampleCurriculum(dir string, logger *utils.Logger) (*curriculum.Curriculum, error) {
	if dir != "" {
		if _, err := os.Stat(dir); err == nil {
			return curriculum.LoadDir(dir)
		}
		logger.Info("Curriculum directory %s not found, using the built-in sample", dir)
	}
	return sampleCurriculum(), nil
}

func sampleCurriculum() *curriculum.Curriculum {
	return &curriculum.Curriculum{
		ID:    "bio-101",
		Title: "Introduction to Cell Biology",
		Topics: []curriculum.Topic{
			{
				ID: "mitosis", Title: "Mitosis", Unit: "unit-1",
				Summary:    "Mitosis divides one cell into two genetically identical daughters.",
				Objectives: []string{"name the four phases in order", "explain what cytokinesis does"},
				Transcript: []curriculum.Segment{
					{ID: "m1", Index: 0, Text: "Mitosis begins with prophase, when the chromosomes condense."},
					{ID: "m2", Index: 1, Text: "During metaphase the chromosomes line up at the cell equator."},
					{ID: "m3", Index: 2, Text: "Anaphase pulls the sister chromatids to opposite poles."},
					{ID: "m4", Index: 3, Text: "Telophase rebuilds the nuclear envelopes, and cytokinesis splits the cell."},
				},
				Glossary: []curriculum.GlossaryTerm{
					{Term: "chromatid", Definition: "one half of a duplicated chromosome"},
				},
				Misconceptions: []string{"mitosis produces four cells (that is meiosis)"},
			},
			{
				ID: "meiosis", Title: "Meiosis", Unit: "unit-2",
				Summary: "Meiosis halves the chromosome count across two divisions to make gametes.",
				Transcript: []curriculum.Segment{
					{ID: "g1", Index: 0, Text: "Meiosis runs two rounds of division and yields four gametes."},
				},
				Dependencies: []string{"Mitosis"},
			},
		},
	}
}

func newReadCmd(configPath *string) *cobra.Command {
	var position int

	cmd := &cobra.Command{
		Use:   "read <file>",
		Short: "Preview the reading window around a position in a document",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(*configPath)
			if err != nil {
				return err
			}
			raw, err := os.ReadFile(args[0])
			if err != nil {
				return err
			}
			chunks := splitParagraphs(string(raw))
			if len(chunks) == 0 {
				return fmt.Errorf("%s holds no readable text", args[0])
			}

			builder := reading.NewBuilder(reading.Config{
				PrecedingChunks: cfg.Reading.PrecedingChunks,
				FollowingChunks: cfg.Reading.FollowingChunks,
				MaxSectionChars: cfg.Reading.MaxSectionChars,
			})
			w := builder.BuildWindow(chunks, position)
			fmt.Printf("%s section %d of %d, ~%d tokens\n\n",
				bold("window"), w.Position+1, w.Total, w.EstimatedTokens)
			fmt.Println(builder.SystemMessage(args[0], w))
			return nil
		},
	}
	cmd.Flags().IntVar(&position, "position", 0, "chunk index the listener is on")
	return cmd
}

func splitParagraphs(text string) []string {
	var chunks []string
	for _, block := range strings.Split(text, "\n\n") {
		if trimmed := strings.TrimSpace(block); trimmed != "" {
			chunks = append(chunks, trimmed)
		}
	}
	return chunks
}
