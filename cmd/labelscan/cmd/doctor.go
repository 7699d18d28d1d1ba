package cmd

import (
	"fmt"

	"github.com/MeKo-Tech/labelscan/internal/decode"
	"github.com/MeKo-Tech/labelscan/internal/models"
	"github.com/MeKo-Tech/labelscan/internal/onnx"
	"github.com/spf13/cobra"
)

// doctorCmd checks the native dependencies without starting a pipeline.
var doctorCmd = &cobra.Command{
	Use:   "doctor",
	Short: "Check the detector model, ONNX Runtime and OCR engine",
	Long: `Verify that the pieces the pipeline loads at start are present:
- the detector model file
- the ONNX Runtime shared library
- the tesseract engine (requires a build with -tags ocr_tesseract)

With --inspect the detector's tensors and metadata are printed as well.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := GetConfig()
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		failed := 0
		report := func(name string, err error, detail string) {
			if err != nil {
				failed++
				_, _ = fmt.Fprintf(out, "FAIL  %-12s %v\n", name, err)
				return
			}
			_, _ = fmt.Fprintf(out, "ok    %-12s %s\n", name, detail)
		}

		modelPath := cfg.ToDetectorConfig().ModelPath
		report("model", models.ValidateModelExists(modelPath), modelPath)

		ver, err := onnx.RuntimeVersion(cfg.ONNX.LibraryPath, cfg.GPU.Enabled)
		report("onnxruntime", err, ver)

		if inspect, _ := cmd.Flags().GetBool("inspect"); inspect && err == nil && failed == 0 {
			desc, descErr := onnx.DescribeModel(modelPath)
			if descErr == nil {
				_, descErr = desc.Head()
			}
			report("model-io", descErr, "yolo detection head")
			if descErr == nil {
				desc.Write(out)
			}
		}

		engine, err := decode.NewTesseract(cfg.ToEngineOptions())
		if err == nil {
			_ = engine.Close()
		}
		report("tesseract", err, cfg.Decode.Language)

		if failed > 0 {
			return fmt.Errorf("%d check(s) failed", failed)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(doctorCmd)
	doctorCmd.Flags().Bool("inspect", false, "print the detector model's inputs, outputs and metadata")
}
