// Command process-payments materializes and processes payments for approved
// applications that are still waiting in the payable queue.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"

	"scholarship-aid-api/config"
	"scholarship-aid-api/models"
	"scholarship-aid-api/services"
	"scholarship-aid-api/utils"

	"github.com/joho/godotenv"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables")
	}

	var (
		applicationIDsRaw string
		limit             int
		dryRun            bool
		method            string
		scheduledDate     string
	)

	flag.StringVar(&applicationIDsRaw, "application-ids", "", "comma-separated list of application IDs to process (optional)")
	flag.IntVar(&limit, "limit", 0, "maximum number of applications to process (optional)")
	flag.BoolVar(&dryRun, "dry-run", false, "list the selected applications without writing to the database")
	flag.StringVar(&method, "method", string(models.PaymentMethodBankTransfer), "payment method for the created payments")
	flag.StringVar(&scheduledDate, "scheduled-date", "", "YYYY-MM-DD date for scheduled payments (optional)")
	flag.Parse()

	if limit < 0 {
		log.Fatal("limit must be greater than or equal to 0")
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("invalid configuration: %v", err)
	}
	logFile, _ := config.InitLogging(cfg.IsProduction())
	if logFile != nil {
		defer logFile.Close()
	}
	config.InitDB(cfg)

	ctx := context.Background()
	svc := services.NewPaymentService(nil)

	refs, err := selectRefs(ctx, svc, applicationIDsRaw)
	if err != nil {
		log.Fatal(err)
	}
	if limit > 0 && len(refs) > limit {
		refs = refs[:limit]
	}
	if len(refs) == 0 {
		fmt.Println("No approved applications are waiting for payment.")
		return
	}

	if dryRun {
		var total float64
		currency := config.Current().DefaultCurrency
		for _, ref := range refs {
			item, err := svc.Get(ctx, services.SystemActor, ref)
			if err != nil {
				fmt.Printf("%s: %v\n", ref.String(), err)
				continue
			}
			total += item.Amount
			currency = item.Currency
			fmt.Printf("%s\t%s\t%s\n", ref.String(), item.StudentName, utils.FormatAmount(item.Amount, item.Currency))
		}
		fmt.Printf("Dry run complete. %d applications selected (%s), no database changes were made.\n",
			len(refs), utils.FormatAmount(total, currency))
		return
	}

	result, err := svc.ProcessApprovedApplications(ctx, services.SystemActor, refs, models.PaymentMethod(method), scheduledDate)
	if err != nil {
		var svcErr *services.Error
		if errors.As(err, &svcErr) && svcErr.Kind == services.KindConflict {
			log.Fatalf("another run holds some of these applications: %v", err)
		}
		log.Fatalf("payment run failed: %v", err)
	}

	created := 0
	for _, outcome := range result.Created {
		if outcome.Success {
			created++
			continue
		}
		fmt.Printf("application %d: %s\n", outcome.ApplicationID, outcome.Error)
	}
	fmt.Printf("Payments created: %d (failed: %d)\n", created, len(result.Created)-created)
	fmt.Printf("Payments processed: %d (failed: %d)\n", result.Bulk.Processed, result.Bulk.Failed)
	for _, item := range result.Bulk.Items {
		for _, warning := range item.Warnings {
			fmt.Printf("%s: warning: %s\n", item.Ref.String(), warning)
		}
	}

	if created < len(result.Created) || result.Bulk.Failed > 0 {
		os.Exit(2)
	}
}

// selectRefs returns the explicit application refs, or the whole pending queue.
func selectRefs(ctx context.Context, svc *services.PaymentService, raw string) ([]services.PayableRef, error) {
	if strings.TrimSpace(raw) == "" {
		return svc.PendingRefs(ctx, services.SystemActor)
	}
	var refs []services.PayableRef
	for _, part := range strings.Split(raw, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		id64, err := strconv.ParseUint(part, 10, 64)
		if err != nil || id64 == 0 {
			return nil, fmt.Errorf("invalid application id '%s'", part)
		}
		refs = append(refs, services.PendingApplicationRef(uint(id64)))
	}
	return refs, nil
}
