package cmd

import (
	"fmt"
	"os"
	"path"
	"time"
	"unicode/utf8"

	"github.com/spf13/cobra"

	"github.com/ThierryZhou/go-s3connector/fs"
	"github.com/ThierryZhou/go-s3connector/s3"
)

func newPutCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "put FILE BUCKET [KEY]",
		Short: "Upload a local file",
		Long: `Upload FILE to BUCKET. KEY defaults to the base name of FILE.
The bucket is created when it does not exist.`,
		Args: cobra.RangeArgs(2, 3),
		RunE: func(cmd *cobra.Command, args []string) error {
			key := ""
			if len(args) == 3 {
				key = args[2]
			}
			c, err := a.client(cmd)
			if err != nil {
				return err
			}
			obj, err := c.UploadFile(cmd.Context(), args[0], args[1], key)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "upload: %s to %s\n", args[0], obj.Path())
			return nil
		},
	}
}

// parseSeparator accepts a single character; "\t" and "tab" mean tab.
func parseSeparator(s string) (rune, error) {
	switch s {
	case "":
		return 0, nil
	case `\t`, "tab":
		return '\t', nil
	}
	r, size := utf8.DecodeRuneInString(s)
	if size != len(s) || r == utf8.RuneError {
		return 0, fmt.Errorf("separator must be a single character, got %q", s)
	}
	return r, nil
}

func newPutCSVCmd(a *app) *cobra.Command {
	var sep, inputSep, null string
	var compress bool
	cmd := &cobra.Command{
		Use:   "put-csv FILE BUCKET KEY",
		Short: "Upload a delimited table",
		Long: `Read the delimited table in FILE (first row is the header) and upload it
to BUCKET/KEY as UTF-8 CSV with a byte order mark. Empty cells are written
as the null identifier.`,
		Args: cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) (err error) {
			inRune, err := parseSeparator(inputSep)
			if err != nil {
				return fmt.Errorf("--input-sep: %w", err)
			}
			opt := a.cfg.TableOption()
			if cmd.Flags().Changed("sep") {
				if opt.Separator, err = parseSeparator(sep); err != nil {
					return fmt.Errorf("--sep: %w", err)
				}
			}
			if cmd.Flags().Changed("null") {
				opt.NullIdentifier = null
			}
			opt.Compress = compress
			if inRune == 0 {
				inRune = s3.DefaultSeparator
			}

			name, err := fs.ExpandPath(args[0])
			if err != nil {
				return err
			}
			f, err := os.Open(name)
			if err != nil {
				return err
			}
			defer fs.CheckClose(f, &err)

			table, err := s3.ReadTable(f, inRune)
			if err != nil {
				return err
			}

			c, err := a.client(cmd)
			if err != nil {
				return err
			}
			obj, err := c.UploadTable(cmd.Context(), table, args[1], args[2], opt)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "upload: %d rows to %s\n", len(table.Rows), obj.Path())
			return nil
		},
	}
	cmd.Flags().StringVar(&sep, "sep", "", "output separator (default from config, then \",\")")
	cmd.Flags().StringVar(&inputSep, "input-sep", ",", "separator of FILE")
	cmd.Flags().StringVar(&null, "null", "", "null identifier (default from config, then \"#N/A\")")
	cmd.Flags().BoolVar(&compress, "gzip", false, "gzip the object and set Content-Encoding")
	return cmd
}

func newGetCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "get BUCKET KEY [FILE]",
		Short: "Download an object to a local file",
		Long:  "Download BUCKET/KEY. FILE defaults to the base name of KEY in the current directory.",
		Args:  cobra.RangeArgs(2, 3),
		RunE: func(cmd *cobra.Command, args []string) error {
			file := ""
			if len(args) == 3 {
				file = args[2]
			}
			c, err := a.client(cmd)
			if err != nil {
				return err
			}
			obj, err := c.DownloadFile(cmd.Context(), args[0], args[1], file)
			if err != nil {
				return err
			}
			if file == "" {
				file = path.Base(obj.Key)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "download: %s to %s\n", obj.Path(), file)
			return nil
		},
	}
}

func newCatCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "cat BUCKET KEY",
		Short: "Write an object to standard output",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := a.client(cmd)
			if err != nil {
				return err
			}
			data, err := c.GetObject(cmd.Context(), args[0], args[1])
			if err != nil {
				return err
			}
			_, err = cmd.OutOrStdout().Write(data)
			return err
		},
	}
}

func newStatCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "stat BUCKET KEY",
		Short: "Show object metadata",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := a.client(cmd)
			if err != nil {
				return err
			}
			obj, err := c.HeadObject(cmd.Context(), args[0], args[1])
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Path:          %s\n", obj.Path())
			fmt.Fprintf(out, "Size:          %d\n", obj.Size)
			fmt.Fprintf(out, "ETag:          %s\n", obj.ETag)
			fmt.Fprintf(out, "Content-Type:  %s\n", obj.ContentType)
			fmt.Fprintf(out, "Last-Modified: %s\n", timestamp(obj.LastModified))
			return nil
		},
	}
}

func newRemoveCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "rm BUCKET KEY...",
		Short: "Delete objects",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := a.client(cmd)
			if err != nil {
				return err
			}
			bucket := args[0]
			for _, key := range args[1:] {
				if err := c.DeleteObject(cmd.Context(), bucket, key); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "delete: %s\n", s3.ObjectPath(bucket, key))
			}
			return nil
		},
	}
}

func newPresignCmd(a *app) *cobra.Command {
	var expiry time.Duration
	cmd := &cobra.Command{
		Use:   "presign BUCKET KEY",
		Short: "Print a pre-signed GET URL",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := a.client(cmd, func(o *s3.Option) {
				o.PresignExpiry = expiry
			})
			if err != nil {
				return err
			}
			url, err := c.PresignObject(cmd.Context(), args[0], args[1])
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), url)
			return nil
		},
	}
	cmd.Flags().DurationVar(&expiry, "expiry", 15*time.Minute, "lifetime of the URL")
	return cmd
}
