package cmd

import (
	"errors"
	"fmt"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/ThierryZhou/go-s3connector/fs/config"
	"github.com/ThierryZhou/go-s3connector/s3"
)

func newMakeBucketCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "mb BUCKET",
		Short: "Create a bucket",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := a.client(cmd)
			if err != nil {
				return err
			}
			b, err := c.CreateBucket(cmd.Context(), args[0])
			if errors.Is(err, s3.ErrBucketExisted) {
				fmt.Fprintf(cmd.OutOrStdout(), "bucket %s already exists\n", b.Name)
				return nil
			}
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "make_bucket: %s\n", b.Name)
			return nil
		},
	}
}

func newRemoveBucketCmd(a *app) *cobra.Command {
	var force, yes bool
	cmd := &cobra.Command{
		Use:   "rb BUCKET",
		Short: "Delete a bucket",
		Long: `Delete a bucket. The bucket must be empty unless --force is given,
in which case every object in it is deleted first.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			bucket := args[0]
			c, err := a.client(cmd)
			if err != nil {
				return err
			}
			if force {
				if !yes {
					fmt.Fprintf(cmd.OutOrStdout(), "Delete every object in bucket %s?\n", bucket)
					if !config.Confirm(false) {
						return errors.New("aborted")
					}
				}
				n, err := c.EmptyBucket(cmd.Context(), bucket)
				if err != nil {
					return err
				}
				log.Infof("Deleted %d objects from %s", n, bucket)
			}
			if err := c.DeleteBucket(cmd.Context(), bucket); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "remove_bucket: %s\n", bucket)
			return nil
		},
	}
	cmd.Flags().BoolVarP(&force, "force", "f", false, "delete all objects before removing the bucket")
	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "do not ask for confirmation with --force")
	return cmd
}

func newExistsCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "exists BUCKET",
		Short: "Check whether a bucket exists",
		Long:  "Print true or false. The exit status is 1 when the bucket does not exist.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := a.client(cmd)
			if err != nil {
				return err
			}
			ok := c.BucketExists(cmd.Context(), args[0])
			fmt.Fprintln(cmd.OutOrStdout(), ok)
			if !ok {
				return &exitError{code: 1}
			}
			return nil
		},
	}
}

func newListCmd(a *app) *cobra.Command {
	var prefix string
	cmd := &cobra.Command{
		Use:   "ls [BUCKET]",
		Short: "List buckets, or the objects of a bucket",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := a.client(cmd)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()

			if len(args) == 0 {
				buckets, err := c.ListBuckets(cmd.Context())
				if err != nil {
					return err
				}
				for _, b := range buckets {
					fmt.Fprintf(out, "%s  %s\n", timestamp(b.CreationDate), b.Name)
				}
				return nil
			}

			objects, err := c.ListObjects(cmd.Context(), args[0], prefix)
			if err != nil {
				return err
			}
			for _, o := range objects {
				fmt.Fprintf(out, "%s %10d %s\n", timestamp(o.LastModified), o.Size, o.Key)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&prefix, "prefix", "", "only list keys starting with this prefix")
	return cmd
}
