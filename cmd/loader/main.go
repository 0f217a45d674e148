// Command loader bulk-imports the season TSV dump into the clues table.
// Expected columns: round, clue_value, daily_double_value, category,
// comments, answer, question, air_date, notes. The TSV's "answer" column is
// the text shown to the player and "question" is the expected response, so
// they map to clue_text and correct_answer respectively.
package main

import (
	"context"
	"encoding/csv"
	"flag"
	"fmt"
	"io"
	"os"
	"strconv"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

const copyBatchSize = 5000

var clueColumns = []string{
	"round", "clue_value", "is_daily_double", "category",
	"comments", "clue_text", "correct_answer", "air_date", "notes",
}

func main() {
	var (
		file     = flag.String("file", "combined_season1-40.tsv", "Path to the season TSV dump")
		truncate = flag.Bool("truncate", false, "Truncate the clues table before loading")
	)
	flag.Parse()

	log.Logger = zerolog.New(os.Stderr).With().Timestamp().Logger()

	if err := godotenv.Load("configs/.env"); err != nil {
		log.Debug().Msg("no .env file found; relying on process environment")
	}

	dsn := fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		getEnv("PG_HOST", "localhost"), getEnv("PG_PORT", "5432"),
		os.Getenv("PG_USER"), os.Getenv("PG_PASSWORD"), os.Getenv("PG_DATABASE"),
		getEnv("PG_SSL_MODE", "disable"))

	ctx := context.Background()
	conn, err := pgx.Connect(ctx, dsn)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer conn.Close(ctx)

	if *truncate {
		if _, err := conn.Exec(ctx, "TRUNCATE clues RESTART IDENTITY"); err != nil {
			log.Fatal().Err(err).Msg("failed to truncate clues")
		}
	}

	f, err := os.Open(*file)
	if err != nil {
		log.Fatal().Err(err).Str("file", *file).Msg("failed to open data file")
	}
	defer f.Close()

	reader := csv.NewReader(f)
	reader.Comma = '\t'
	reader.LazyQuotes = true

	header, err := reader.Read()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to read header row")
	}
	cols := columnIndex(header)

	var (
		batch   [][]any
		total   int64
		skipped int64
	)
	flush := func() {
		if len(batch) == 0 {
			return
		}
		n, err := conn.CopyFrom(ctx, pgx.Identifier{"clues"}, clueColumns, pgx.CopyFromRows(batch))
		if err != nil {
			log.Fatal().Err(err).Msg("copy batch failed")
		}
		total += n
		batch = batch[:0]
		log.Info().Int64("rows", total).Msg("progress")
	}

	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			skipped++
			log.Error().Err(err).Msg("skipping unreadable row")
			continue
		}

		row, err := parseRow(record, cols)
		if err != nil {
			skipped++
			log.Error().Err(err).Msg("skipping malformed row")
			continue
		}
		batch = append(batch, row)
		if len(batch) >= copyBatchSize {
			flush()
		}
	}
	flush()

	log.Info().Int64("rows", total).Int64("skipped", skipped).Msg("load complete")
}

func columnIndex(header []string) map[string]int {
	cols := make(map[string]int, len(header))
	for i, name := range header {
		cols[name] = i
	}
	return cols
}

func parseRow(record []string, cols map[string]int) ([]any, error) {
	field := func(name string) string {
		i, ok := cols[name]
		if !ok || i >= len(record) {
			return ""
		}
		return record[i]
	}

	round, err := strconv.Atoi(field("round"))
	if err != nil {
		return nil, fmt.Errorf("bad round %q: %w", field("round"), err)
	}
	value, err := strconv.Atoi(field("clue_value"))
	if err != nil {
		return nil, fmt.Errorf("bad clue_value %q: %w", field("clue_value"), err)
	}
	ddValue, err := strconv.Atoi(field("daily_double_value"))
	if err != nil {
		return nil, fmt.Errorf("bad daily_double_value %q: %w", field("daily_double_value"), err)
	}
	airDate, err := time.Parse("2006-01-02", field("air_date"))
	if err != nil {
		return nil, fmt.Errorf("bad air_date %q: %w", field("air_date"), err)
	}

	return []any{
		round,
		value,
		ddValue != 0,
		field("category"),
		field("comments"),
		field("answer"),
		field("question"),
		airDate,
		field("notes"),
	}, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
