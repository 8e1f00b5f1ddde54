package cmd

import (
	"context"
	"fmt"
	"io"

	"github.com/SteveArevalo/CS499-CapStone/internal/messaging"
	"github.com/SteveArevalo/CS499-CapStone/internal/models"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"go.mongodb.org/mongo-driver/bson"
)

var (
	dataFlag    string
	lookupFlag  string
	filterFlag  string
	queryFlag   string
	updateFlag  string
	enqueueFlag bool
)

var animalsCmd = &cobra.Command{
	Use:   "animals",
	Short: "Create, read, update and delete animal records",
	Long: `Manage animal records. Documents are given as MongoDB relaxed Extended
JSON, for example --filter '{"breed": "Beagle"}'.`,
}

var animalsCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Insert a record unless one matching --lookup exists",
	RunE:  runAnimalsCreate,
}

var animalsReadCmd = &cobra.Command{
	Use:   "read",
	Short: "Print the records matching --filter, all records when omitted",
	RunE:  runAnimalsRead,
}

var animalsUpdateCmd = &cobra.Command{
	Use:   "update",
	Short: "Apply --update to every record matching --query",
	RunE:  runAnimalsUpdate,
}

var animalsDeleteCmd = &cobra.Command{
	Use:   "delete",
	Short: "Delete every record matching --query",
	RunE:  runAnimalsDelete,
}

func init() {
	animalsCreateCmd.Flags().StringVar(&dataFlag, "data", "", "record to insert")
	animalsCreateCmd.Flags().StringVar(&lookupFlag, "lookup", "", "filter used to detect an existing record")
	animalsCreateCmd.Flags().BoolVar(&enqueueFlag, "enqueue", false, "publish an intake message instead of inserting directly")
	_ = animalsCreateCmd.MarkFlagRequired("data")

	animalsReadCmd.Flags().StringVar(&filterFlag, "filter", "", "filter document")

	animalsUpdateCmd.Flags().StringVar(&queryFlag, "query", "", "filter document")
	animalsUpdateCmd.Flags().StringVar(&updateFlag, "update", "", "update document, e.g. {\"$set\": {...}}")
	_ = animalsUpdateCmd.MarkFlagRequired("query")
	_ = animalsUpdateCmd.MarkFlagRequired("update")

	animalsDeleteCmd.Flags().StringVar(&queryFlag, "query", "", "filter document")
	_ = animalsDeleteCmd.MarkFlagRequired("query")

	animalsCmd.AddCommand(animalsCreateCmd, animalsReadCmd, animalsUpdateCmd, animalsDeleteCmd)
	rootCmd.AddCommand(animalsCmd)
}

func runAnimalsCreate(cmd *cobra.Command, args []string) error {
	data, err := models.ParseRecord([]byte(dataFlag))
	if err != nil {
		return errors.Wrap(err, "--data")
	}
	lookup, err := models.ParseQuery([]byte(lookupFlag))
	if err != nil {
		return errors.Wrap(err, "--lookup")
	}

	if enqueueFlag {
		return enqueueIntake(cmd.Context(), cmd.OutOrStdout())
	}

	return withApp(cmd, func(ctx context.Context, a *app) error {
		created, err := a.service.CreateAnimal(ctx, data, lookup)
		fmt.Fprintf(cmd.OutOrStdout(), "created: %t\n", created)
		return err
	})
}

func enqueueIntake(ctx context.Context, out io.Writer) error {
	bus, err := messaging.NewAzureServiceBus(cfg.Azure, "shelter-cli")
	if err != nil {
		return err
	}
	defer bus.Close(context.Background())

	if err := bus.SendMessage(ctx, models.NewIntakeMessage([]byte(dataFlag), []byte(lookupFlag))); err != nil {
		return err
	}
	fmt.Fprintf(out, "queued: %s\n", cfg.Azure.QueueName)
	return nil
}

func runAnimalsRead(cmd *cobra.Command, args []string) error {
	filter, err := models.ParseQuery([]byte(filterFlag))
	if err != nil {
		return errors.Wrap(err, "--filter")
	}

	return withApp(cmd, func(ctx context.Context, a *app) error {
		records, err := a.service.ReadAnimals(ctx, filter)
		if werr := writeRecordLines(cmd.OutOrStdout(), records); werr != nil {
			return werr
		}
		return err
	})
}

func runAnimalsUpdate(cmd *cobra.Command, args []string) error {
	query, err := models.ParseQuery([]byte(queryFlag))
	if err != nil {
		return errors.Wrap(err, "--query")
	}
	update, err := models.ParseQuery([]byte(updateFlag))
	if err != nil {
		return errors.Wrap(err, "--update")
	}

	return withApp(cmd, func(ctx context.Context, a *app) error {
		n, err := a.service.UpdateAnimals(ctx, query, update)
		fmt.Fprintf(cmd.OutOrStdout(), "modified: %d\n", n)
		return err
	})
}

func runAnimalsDelete(cmd *cobra.Command, args []string) error {
	query, err := models.ParseQuery([]byte(queryFlag))
	if err != nil {
		return errors.Wrap(err, "--query")
	}

	return withApp(cmd, func(ctx context.Context, a *app) error {
		n, err := a.service.DeleteAnimals(ctx, query)
		fmt.Fprintf(cmd.OutOrStdout(), "deleted: %d\n", n)
		return err
	})
}

// withApp runs fn with a connected app and closes it afterwards
func withApp(cmd *cobra.Command, fn func(ctx context.Context, a *app) error) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	a, err := newApp(ctx, cfg, plotterFor(cmd))
	if err != nil {
		return err
	}
	defer a.close(context.Background())

	return fn(ctx, a)
}

// writeRecordLines prints one relaxed Extended JSON document per line
func writeRecordLines(w io.Writer, records []models.Record) error {
	for _, rec := range records {
		raw, err := bson.MarshalExtJSON(rec, false, false)
		if err != nil {
			return errors.Wrap(err, "failed to encode record")
		}
		if _, err := fmt.Fprintln(w, string(raw)); err != nil {
			return err
		}
	}
	return nil
}
