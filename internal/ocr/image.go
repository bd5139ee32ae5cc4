package ocr

import (
	"context"
	"fmt"

	"github.com/joseph-ayodele/pet-health-tracker/constants"
)

func (e *Extractor) extractImage(ctx context.Context, path, ext, workDir string) (Result, error) {
	var warns []string
	if constants.IsHEICExt(ext) {
		out, w, err := convertHEICtoPNG(ctx, e.runner, e.cfg.HeicConverter, path, workDir)
		warns = append(warns, w...)
		if err != nil {
			e.logger.Error("heic conversion failed", "converter", e.cfg.HeicConverter, "error", err)
			return Result{SourceType: constants.IMAGE, Warnings: warns}, err
		}
		path = out
	}

	txt, w, err := e.tesseractOCR(ctx, path)
	warns = append(warns, w...)
	if err != nil {
		return Result{SourceType: constants.IMAGE, Warnings: warns}, err
	}
	txt = Normalize(txt)

	return Result{
		Text:       txt,
		Pages:      1,
		SourceType: constants.IMAGE,
		Method:     "image-ocr",
		Language:   e.cfg.TesseractLang,
		Warnings:   warns,
		Confidence: heuristicConfidence(txt),
	}, nil
}

func (e *Extractor) tesseractOCR(ctx context.Context, path string) (string, []string, error) {
	args := []string{path, "stdout", "-l", e.cfg.TesseractLang}
	if e.cfg.TessdataDir != "" {
		args = append(args, "--tessdata-dir", e.cfg.TessdataDir)
	}

	// tesseract <file> stdout -l <lang>
	out, errb, err := e.runner.Run(ctx, e.cfg.Tesseract, args...)
	if err != nil {
		return "", nonEmpty(string(errb)), fmt.Errorf("tesseract: %w", err)
	}
	return string(out), nil, nil
}
