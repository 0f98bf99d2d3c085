package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/wonny/aegis-signal/internal/contracts"
	"github.com/wonny/aegis-signal/internal/prediction"
)

// predictionsCmd represents the predictions command
var predictionsCmd = &cobra.Command{
	Use:   "predictions",
	Short: "예측 테이블 관리",
}

var predictionsImportCmd = &cobra.Command{
	Use:   "import [file]",
	Short: "예측 파일을 postgres(forecast.predictions)로 적재",
	Long: `CSV/Parquet 예측 파일을 검증한 뒤 postgres에 upsert 합니다.
스케줄러의 pool_refresh 작업이 이 테이블을 읽습니다.

Example:
  go run ./cmd/quant predictions import data/pred_2024-03-04.parquet`,
	Args: cobra.ExactArgs(1),
	RunE: runPredictionsImport,
}

var predictionsInspectCmd = &cobra.Command{
	Use:   "inspect [file]",
	Short: "예측 파일 요약 (행 수, 기간, 지문)",
	Args:  cobra.ExactArgs(1),
	RunE:  runPredictionsInspect,
}

func init() {
	rootCmd.AddCommand(predictionsCmd)
	predictionsCmd.AddCommand(predictionsImportCmd)
	predictionsCmd.AddCommand(predictionsInspectCmd)
}

func runPredictionsImport(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	e, err := loadEnv()
	if err != nil {
		return err
	}
	table, err := e.loadPredictions(ctx, args[0], "", "")
	if err != nil {
		return err
	}

	db, err := e.openDB()
	if err != nil {
		return err
	}
	if db == nil {
		return fmt.Errorf("import requires DATABASE_URL")
	}
	defer db.Close()

	if err := db.Migrate(ctx); err != nil {
		return err
	}
	points := table.Points()
	if err := prediction.NewRepository(db.Pool).Save(ctx, points); err != nil {
		return err
	}

	PrintSuccess(fmt.Sprintf("Imported %d predictions (%d skipped)", len(points), table.Skipped()))
	return nil
}

func runPredictionsInspect(cmd *cobra.Command, args []string) error {
	table, err := prediction.LoadFile(args[0])
	if err != nil {
		return err
	}

	dates := table.Dates()
	PrintHeader("Predictions " + args[0])
	PrintKeyValue("Rows", fmt.Sprintf("%d", table.Len()), 12)
	PrintKeyValue("Skipped", fmt.Sprintf("%d (NaN/Inf)", table.Skipped()), 12)
	PrintKeyValue("Instruments", fmt.Sprintf("%d", len(table.Instruments())), 12)
	if len(dates) > 0 {
		PrintKeyValue("Period", dates[0].Format(contracts.DateLayout)+" ~ "+dates[len(dates)-1].Format(contracts.DateLayout), 12)
	}
	PrintKeyValue("Dates", fmt.Sprintf("%d", len(dates)), 12)
	PrintKeyValue("Fingerprint", table.Fingerprint(), 12)
	PrintDoubleSeparator()
	return nil
}
