package main

import (
	"context"
	"fmt"
	"os"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/urfave/cli"

	"tradedash/src/database"
	"tradedash/src/fetcher"
	"tradedash/src/model"
	"tradedash/src/reconcile"
	"tradedash/src/repository"
	"tradedash/src/scheduler"
	"tradedash/src/security"
	"tradedash/src/server"
)

var Version string

func main() {
	app := cli.NewApp()
	app.Name = "Tradedash CMD"
	app.Usage = "The Tradedash command line interface"

	app.Commands = []cli.Command{
		serverCMD,
		syncCMD,
		keysCMD,
	}

	if err := app.Run(os.Args); err != nil {
		_, _ = fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

var (
	serverCMD = cli.Command{
		Name:        "server",
		Usage:       "run the dashboard API server",
		Action:      serverAction,
		ArgsUsage:   "",
		Description: `Start the HTTP API with the background sync scheduler`,
	}
	syncCMD = cli.Command{
		Name:      "sync",
		Usage:     "run one reconciliation pass",
		Action:    syncAction,
		ArgsUsage: "",
		Flags: []cli.Flag{
			cli.UintFlag{Name: "user", Usage: "sync only this user id"},
		},
		Description: `Reconcile stored open positions against live broker snapshots`,
	}
	keysCMD = cli.Command{
		Name:      "keys",
		Usage:     "store broker credentials for a user",
		Action:    keysAction,
		ArgsUsage: "",
		Flags: []cli.Flag{
			cli.UintFlag{Name: "user", Usage: "owning user id", Required: true},
			cli.StringFlag{Name: "exchange", Usage: "exchange name", Required: true},
			cli.StringFlag{Name: "api-key", Usage: "broker API key", Required: true},
			cli.StringFlag{Name: "api-secret", Usage: "broker API secret"},
			cli.StringFlag{Name: "passphrase", Usage: "broker API passphrase"},
			cli.StringFlag{Name: "account", Usage: "broker account id"},
			cli.StringFlag{Name: "label", Usage: "display label"},
		},
		Description: `Encrypt and upsert a broker credential set`,
	}
)

func serverAction(c *cli.Context) error {
	logrus.Info("Starting server CMD")

	if err := database.InitMainDB(); err != nil {
		logrus.WithError(err).Fatal("Failed to connect to database")
	}

	sched := scheduler.New()
	if err := sched.Start(); err != nil {
		logrus.WithError(err).Fatal("Failed to start scheduler")
	}
	defer sched.Stop()

	server.StartServer(server.GetConfig().Port)
	return nil
}

func syncAction(c *cli.Context) error {
	logrus.Info("Starting sync CMD")

	if err := database.InitMainDB(); err != nil {
		logrus.WithError(err).Fatal("Failed to connect to database")
	}

	ctx := context.Background()
	credRepo := repository.NewBotCredentialRepository()

	var userIDs []uint
	if userID := c.Uint("user"); userID != 0 {
		userIDs = []uint{uint(userID)}
	} else {
		ids, err := credRepo.ListUserIDs(ctx)
		if err != nil {
			logrus.WithError(err).Error("Failed to list users")
			return err
		}
		userIDs = ids
	}

	for _, userID := range userIDs {
		creds, err := credRepo.FindByUser(ctx, userID)
		if err != nil {
			logrus.WithField("user_id", userID).WithError(err).Error("Failed to load credentials")
			continue
		}

		syncer := reconcile.NewSyncer(
			repository.NewPositionRepository(),
			repository.NewTradeRepository(),
			fetcher.BuildPositionFetchers(creds),
		)
		res, err := syncer.Run(ctx, userID)
		if err != nil {
			logrus.WithField("user_id", userID).WithError(err).Error("Sync run failed")
			continue
		}

		logrus.WithFields(logrus.Fields{
			"user_id":  userID,
			"upserted": res.Upserted,
			"closed":   res.Closed,
			"trades":   res.TradesLogged,
		}).Info("Sync run finished")
	}

	return nil
}

func keysAction(c *cli.Context) error {
	logrus.Info("Starting keys CMD")

	if err := database.InitMainDB(); err != nil {
		logrus.WithError(err).Fatal("Failed to connect to database")
	}

	apiKey, err := security.EncryptString(c.String("api-key"))
	if err != nil {
		return err
	}
	apiSecret, err := security.EncryptString(c.String("api-secret"))
	if err != nil {
		return err
	}
	passphrase, err := security.EncryptString(c.String("passphrase"))
	if err != nil {
		return err
	}

	cred := model.BotCredential{
		UserID:         uint(c.Uint("user")),
		Exchange:       c.String("exchange"),
		Environment:    model.EnvironmentProduction,
		Label:          c.String("label"),
		AccountID:      c.String("account"),
		APIKeyHash:     apiKey,
		APISecretHash:  apiSecret,
		PassphraseHash: passphrase,
		WebhookSecret:  uuid.NewString(),
	}

	if err := repository.NewBotCredentialRepository().Upsert(context.Background(), &cred); err != nil {
		logrus.WithError(err).Error("Failed to store credential")
		return err
	}

	logrus.WithFields(logrus.Fields{
		"user_id":        cred.UserID,
		"exchange":       cred.Exchange,
		"webhook_secret": cred.WebhookSecret,
	}).Info("Credential stored")

	return nil
}
