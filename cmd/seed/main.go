package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"time"

	"strive-chatbot-be/internal/bootstrap"
	"strive-chatbot-be/internal/config"
	"strive-chatbot-be/internal/entity"
	"strive-chatbot-be/internal/repository/specification"
	"strive-chatbot-be/internal/repository/unitofwork"
	"strive-chatbot-be/pkg/database"
	"strive-chatbot-be/pkg/embedding"

	"github.com/spf13/cobra"
)

var (
	seedFile   string
	seedForce  bool
	seedDryRun bool
)

func main() {
	root := &cobra.Command{
		Use:   "seed",
		Short: "Embed and insert curated conversation examples",
		RunE:  runSeed,
	}
	root.Flags().StringVarP(&seedFile, "file", "f", "configs/examples.yaml", "curated example file")
	root.Flags().BoolVar(&seedForce, "force", false, "insert even when the domain already has examples")
	root.Flags().BoolVar(&seedDryRun, "dry-run", false, "validate and embed without writing")

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

func runSeed(cmd *cobra.Command, args []string) error {
	cfg := config.Load()

	data, err := os.ReadFile(seedFile)
	if err != nil {
		return fmt.Errorf("read %s: %w", seedFile, err)
	}
	examples, err := parseExamples(data)
	if err != nil {
		return err
	}

	db, err := database.NewGormDBFromDSN(cfg.Database.Connection, false)
	if err != nil {
		return fmt.Errorf("connect database: %w", err)
	}
	uowFactory := unitofwork.NewRepositoryFactory(db)
	embedder := bootstrap.NewEmbeddingProvider(cfg.Ai)

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	byDomain := map[string][]*entity.ConversationExample{}
	for _, e := range examples {
		byDomain[e.DomainTag] = append(byDomain[e.DomainTag], e)
	}

	for domain, batch := range byDomain {
		if !seedForce {
			existing, err := uowFactory.NewUnitOfWork(ctx).ConversationExampleRepository().
				Count(ctx, specification.ByDomainTag{DomainTag: domain})
			if err != nil {
				return fmt.Errorf("count %s examples: %w", domain, err)
			}
			if existing > 0 {
				log.Printf("Domain '%s' already has %d examples, skipping (use --force)", domain, existing)
				continue
			}
		}

		for _, e := range batch {
			embedCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
			res, err := embedder.Generate(embedCtx, e.Utterance, embedding.TaskRetrievalDocument)
			cancel()
			if err != nil {
				return fmt.Errorf("embed example %q: %w", e.Utterance, err)
			}
			e.Embedding = res.Embedding.Values
		}

		if seedDryRun {
			log.Printf("Dry run: %d examples for '%s' embedded", len(batch), domain)
			continue
		}
		if err := insertExamples(ctx, uowFactory, batch); err != nil {
			return fmt.Errorf("insert %s examples: %w", domain, err)
		}
		log.Printf("Seeded %d examples for '%s'", len(batch), domain)
	}

	log.Println("Example seeding completed")
	return nil
}

func insertExamples(ctx context.Context, uowFactory unitofwork.RepositoryFactory, batch []*entity.ConversationExample) error {
	uow := uowFactory.NewUnitOfWork(ctx)
	if err := uow.Begin(ctx); err != nil {
		return err
	}
	defer uow.Rollback()

	if err := uow.ConversationExampleRepository().CreateBulk(ctx, batch); err != nil {
		return err
	}
	return uow.Commit()
}
