/*
Copyright © 2025 tieubaoca
*/
package cmd

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"github.com/tieubaoca/citebot/service"
	"github.com/tieubaoca/citebot/types"
	"github.com/tieubaoca/citebot/utils"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const uploadConcurrency = 4

// uploadDocumentCmd represents the upload-document command
var uploadDocumentCmd = &cobra.Command{
	Use:   "upload-document",
	Short: "Chunk PDF files and index them in the configured store",
	Long: `Splits one PDF (--file) or every PDF of a directory (--directory) into
per-page chunks and indexes them. The source file is copied to the upload
directory so cited documents can be served.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		filePath, _ := cmd.Flags().GetString("file")
		directory, _ := cmd.Flags().GetString("directory")
		tags, _ := cmd.Flags().GetStringArray("tags")
		reinit, _ := cmd.Flags().GetBool("reinit")
		if (filePath == "") == (directory == "") {
			return errors.New("exactly one of --file or --directory is required")
		}

		ctx := cmd.Context()
		c, err := buildComponents(ctx, cfg, nil, false)
		if err != nil {
			return err
		}
		defer c.Close()
		if c.store == nil {
			return errors.New("the web retrieval backend has no document store")
		}
		if reinit {
			if err := c.store.ReInit(ctx); err != nil {
				return err
			}
			zap.L().Info("store reinitialized")
		}

		files, err := service.NewFileService(cfg.UploadDir, c.store, service.NewPDFService(service.DefaultDocumentServiceConfig))
		if err != nil {
			return err
		}

		paths := []string{filePath}
		if directory != "" {
			if paths, err = listPDFs(directory); err != nil {
				return err
			}
		}

		g, ctx := errgroup.WithContext(ctx)
		g.SetLimit(uploadConcurrency)
		for _, path := range paths {
			g.Go(func() error {
				return uploadOne(ctx, files, path, tags)
			})
		}
		return g.Wait()
	},
}

func uploadOne(ctx context.Context, files *service.FileService, path string, tags []string) error {
	stored, err := utils.CopyFileWithTimestamp(path, cfg.UploadDir)
	if err != nil {
		return err
	}
	req := types.UploadRequest{
		Title:  service.GetFileNameWithoutExt(path),
		Source: filepath.Base(path),
		Tags:   tags,
	}
	n, err := files.IngestFile(ctx, stored, req, nil)
	if err != nil {
		zap.L().Error("upload failed", zap.String("file", path), zap.Error(err))
		return err
	}
	zap.L().Info("uploaded document", zap.String("file", path), zap.Int("chunks", n))
	return nil
}

func listPDFs(directory string) ([]string, error) {
	entries, err := os.ReadDir(directory)
	if err != nil {
		return nil, err
	}
	var paths []string
	for _, e := range entries {
		if e.IsDir() || !strings.EqualFold(filepath.Ext(e.Name()), ".pdf") {
			continue
		}
		paths = append(paths, filepath.Join(directory, e.Name()))
	}
	return paths, nil
}

func init() {
	rootCmd.AddCommand(uploadDocumentCmd)
	uploadDocumentCmd.Flags().StringP("file", "f", "", "Path to the PDF file to upload")
	uploadDocumentCmd.Flags().String("directory", "", "Path to a directory of PDF files to upload")
	uploadDocumentCmd.Flags().BoolP("reinit", "r", false, "Drop and recreate the document index first")
	uploadDocumentCmd.Flags().StringArrayP("tags", "g", []string{}, "Tags for the documents")
}
