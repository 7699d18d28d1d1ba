package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// pipelineFlags maps command flags to configuration keys. They are bound when
// the command runs, so several commands can share a key.
var pipelineFlags = map[string]string{
	"source":         "capture.source",
	"tick":           "capture.tick_interval",
	"mode":           "decode.mode",
	"language":       "decode.language",
	"enhance":        "decode.enhance",
	"barcodes":       "decode.barcode_formats",
	"model":          "detector.model",
	"conf":           "detector.confidence_threshold",
	"output-dir":     "extract.output_dir",
	"naming":         "extract.naming",
	"save-crops":     "extract.save_crops",
	"sink-format":    "sink.format",
	"sink-file":      "sink.file",
	"sink-dir":       "sink.dir",
	"sink-layout":    "sink.layout",
	"onnx-lib":       "onnx.library_path",
	"gpu":            "gpu.enabled",
	"display-width":  "capture.display_width",
	"display-height": "capture.display_height",
}

func addPipelineFlags(cmd *cobra.Command) {
	f := cmd.Flags()
	f.StringP("source", "s", "0", "camera index, video file or URL, or image directory")
	f.String("tick", "10ms", "pause between frames")
	f.StringP("mode", "m", "region-ocr", "decode mode: region-ocr, region-fallback or frame-barcode")
	f.String("language", "eng", "tesseract language, e.g. eng or eng+deu")
	f.Bool("enhance", false, "enhance regions (grayscale, blur, sharpen, threshold) before decoding")
	f.StringSlice("barcodes", nil, "barcode formats to search (default all), e.g. qr,code128,ean13")
	f.String("model", "best.onnx", "detector model file name in models dir, or a path")
	f.Float64("conf", 0.25, "minimum detection confidence")
	f.StringP("output-dir", "o", "detected_labels", "directory for cropped label images")
	f.String("naming", "sequence", "crop naming: sequence or timestamp")
	f.Bool("save-crops", true, "write cropped label images to the output dir")
	f.String("sink-format", "xlsx", "result file format: xlsx or csv")
	f.String("sink-file", "", "result file (default label_texts_<timestamp>.<format>)")
	f.String("sink-dir", ".", "directory for the result file")
	f.String("sink-layout", "text", "result columns: text (image, text) or barcode (timestamp, barcode)")
	f.String("onnx-lib", "", "path to the ONNX Runtime shared library")
	f.Bool("gpu", false, "run the detector on CUDA")
	f.Int("display-width", 1100, "annotated frame width")
	f.Int("display-height", 580, "annotated frame height")
}

// bindFlags binds the pipeline flags present on fs to v.
func bindFlags(v *viper.Viper, fs *pflag.FlagSet) error {
	for name, key := range pipelineFlags {
		flag := fs.Lookup(name)
		if flag == nil {
			continue
		}
		if err := v.BindPFlag(key, flag); err != nil {
			return fmt.Errorf("bind flag --%s: %w", name, err)
		}
	}
	return nil
}
