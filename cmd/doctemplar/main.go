package main

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"

	"github.com/nikitaxru/doctemplar"
)

type rootFlags struct {
	verbose bool
	logger  *zap.Logger
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	rf := &rootFlags{}
	cmd := &cobra.Command{
		Use:           "doctemplar",
		Short:         "Извлечение и запись блоков xlsx, подстановка полей {{path}}",
		SilenceUsage:  true,
		SilenceErrors: false,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			var err error
			if rf.verbose {
				rf.logger, err = zap.NewDevelopment()
			} else {
				rf.logger, err = zap.NewProduction()
			}
			return err
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if rf.logger != nil {
				_ = rf.logger.Sync()
			}
		},
	}
	cmd.PersistentFlags().BoolVarP(&rf.verbose, "verbose", "v", false, "подробный журнал")
	cmd.AddCommand(newExtractCmd(rf), newUpdateCmd(rf), newMergeCmd(rf))
	return cmd
}

func newExtractCmd(rf *rootFlags) *cobra.Command {
	var configPath, inPath, outPath string
	cmd := &cobra.Command{
		Use:   "extract",
		Short: "Извлечь блоки книги в JSON",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := doctemplar.LoadConfig(configPath)
			if err != nil {
				return err
			}
			rec, rep, err := doctemplar.ExtractFile(cfg, inPath, doctemplar.WithLogger(rf.logger))
			if err != nil {
				return err
			}
			raw, err := json.MarshalIndent(rec, "", "  ")
			if err != nil {
				return err
			}
			if outPath == "" {
				fmt.Fprintln(cmd.OutOrStdout(), string(raw))
			} else if err := os.WriteFile(outPath, raw, 0o644); err != nil {
				return err
			}
			return reportStatus(cmd, rep)
		},
	}
	cmd.Flags().StringVarP(&configPath, "config", "c", "", "конфигурация блоков (yaml/json)")
	cmd.Flags().StringVarP(&inPath, "in", "i", "", "исходная книга xlsx")
	cmd.Flags().StringVarP(&outPath, "out", "o", "", "файл результата (по умолчанию stdout)")
	_ = cmd.MarkFlagRequired("config")
	_ = cmd.MarkFlagRequired("in")
	return cmd
}

func newUpdateCmd(rf *rootFlags) *cobra.Command {
	var configPath, inPath, dataPath, outPath string
	cmd := &cobra.Command{
		Use:   "update",
		Short: "Записать данные блоков в книгу",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := doctemplar.LoadConfig(configPath)
			if err != nil {
				return err
			}
			data, err := doctemplar.LoadRecord(dataPath)
			if err != nil {
				return err
			}
			rep, err := doctemplar.UpdateFile(cfg, inPath, outPath, data, doctemplar.WithLogger(rf.logger))
			if err != nil {
				return err
			}
			return reportStatus(cmd, rep)
		},
	}
	cmd.Flags().StringVarP(&configPath, "config", "c", "", "конфигурация блоков (yaml/json)")
	cmd.Flags().StringVarP(&inPath, "in", "i", "", "исходная книга xlsx")
	cmd.Flags().StringVarP(&dataPath, "data", "d", "", "данные (json/yaml)")
	cmd.Flags().StringVarP(&outPath, "out", "o", "", "результирующая книга xlsx")
	for _, f := range []string{"config", "in", "data", "out"} {
		_ = cmd.MarkFlagRequired(f)
	}
	return cmd
}

func newMergeCmd(rf *rootFlags) *cobra.Command {
	var inPath, dataPath, outPath, sheet string
	cmd := &cobra.Command{
		Use:   "merge",
		Short: "Подставить поля {{path}} в книгу xlsx или презентацию (json)",
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := doctemplar.LoadRecord(dataPath)
			if err != nil {
				return err
			}
			var rep *doctemplar.Report
			switch {
			case strings.EqualFold(filepath.Ext(inPath), ".json"):
				rep, err = doctemplar.MergePresentationFile(inPath, outPath, data, doctemplar.WithLogger(rf.logger))
			case sheet != "":
				rep, err = mergeSheet(inPath, outPath, sheet, data, rf.logger)
			default:
				rep, err = doctemplar.MergeFile(inPath, outPath, data, doctemplar.WithLogger(rf.logger))
			}
			if err != nil {
				return err
			}
			return reportStatus(cmd, rep)
		},
	}
	cmd.Flags().StringVarP(&inPath, "in", "i", "", "исходный документ (xlsx или json презентации)")
	cmd.Flags().StringVarP(&dataPath, "data", "d", "", "данные (json/yaml)")
	cmd.Flags().StringVarP(&outPath, "out", "o", "", "результирующий документ")
	cmd.Flags().StringVarP(&sheet, "sheet", "s", "", "только указанный лист книги")
	for _, f := range []string{"in", "data", "out"} {
		_ = cmd.MarkFlagRequired(f)
	}
	return cmd
}

// mergeSheet подставляет поля только в один лист книги.
func mergeSheet(inPath, outPath, sheet string, data interface{}, logger *zap.Logger) (*doctemplar.Report, error) {
	e, err := doctemplar.New(doctemplar.Config{}, doctemplar.WithLogger(logger))
	if err != nil {
		return nil, err
	}
	f, err := excelize.OpenFile(inPath)
	if err != nil {
		return nil, fmt.Errorf("открытие книги %s: %w", inPath, err)
	}
	defer f.Close()
	if idx, err := f.GetSheetIndex(sheet); err != nil || idx < 0 {
		return nil, fmt.Errorf("лист %q не найден", sheet)
	}
	rep := e.MergeSheet(f, sheet, data)
	if err := f.SaveAs(outPath); err != nil {
		return rep, fmt.Errorf("сохранение %s: %w", outPath, err)
	}
	return rep, nil
}

func reportStatus(cmd *cobra.Command, rep *doctemplar.Report) error {
	fmt.Fprintf(cmd.ErrOrStderr(), "status: %s, warnings: %d\n", rep.Status(), len(rep.Warnings))
	if rep.Status() == doctemplar.StatusFailed {
		return fmt.Errorf("запуск завершился ошибкой")
	}
	return nil
}
