package fetcher

import (
	"context"

	logger "github.com/sirupsen/logrus"

	"tradedash/src/connectors"
	"tradedash/src/model"
	"tradedash/src/security"
)

// decrypted is a broker credential with its secrets decrypted for use.
type decrypted struct {
	exchange   string
	accountID  string
	apiKey     string
	apiSecret  string
	passphrase string
}

func decryptCredential(cred model.BotCredential) (decrypted, error) {
	apiKey, err := security.DecryptString(cred.APIKeyHash)
	if err != nil {
		return decrypted{}, err
	}
	apiSecret, err := security.DecryptString(cred.APISecretHash)
	if err != nil {
		return decrypted{}, err
	}
	passphrase, err := security.DecryptString(cred.PassphraseHash)
	if err != nil {
		return decrypted{}, err
	}

	return decrypted{
		exchange:   cred.Exchange,
		accountID:  cred.AccountID,
		apiKey:     apiKey,
		apiSecret:  apiSecret,
		passphrase: passphrase,
	}, nil
}

// BuildPositionFetchers constructs one position fetcher per stored broker
// credential. Credentials that fail to decrypt, and exchanges without a
// positions feed, are skipped.
func BuildPositionFetchers(creds []model.BotCredential) []PositionFetcher {
	config := GetConfig()
	fetchers := make([]PositionFetcher, 0, len(creds))

	for _, cred := range creds {
		d, err := decryptCredential(cred)
		if err != nil {
			logger.WithFields(map[string]interface{}{
				"exchange": cred.Exchange,
				"user_id":  cred.UserID,
			}).WithError(err).Error("Failed to decrypt broker credential, skipping")
			continue
		}

		switch d.exchange {
		case "aster":
			client := connectors.NewAsterClient(d.apiKey, d.apiSecret, config.AsterBaseURL)
			fetchers = append(fetchers, NewAsterFetcher(client))
		case "oanda":
			client := connectors.NewOandaClient(d.apiKey, d.accountID, config.OandaBaseURL)
			fetchers = append(fetchers, NewOandaFetcher(client))
		case "tastytrade":
			client := connectors.NewTastytradeClient(d.apiKey, d.apiSecret, d.accountID, config.TastytradeBaseURL)
			fetchers = append(fetchers, NewTastytradeFetcher(client))
		}
	}

	return fetchers
}

// BuildBalanceFetchers constructs one balance fetcher per stored broker
// credential.
func BuildBalanceFetchers(creds []model.BotCredential) []BalanceFetcher {
	config := GetConfig()
	fetchers := make([]BalanceFetcher, 0, len(creds))

	for _, cred := range creds {
		d, err := decryptCredential(cred)
		if err != nil {
			logger.WithFields(map[string]interface{}{
				"exchange": cred.Exchange,
				"user_id":  cred.UserID,
			}).WithError(err).Error("Failed to decrypt broker credential, skipping")
			continue
		}

		var fn func(ctx context.Context) (float64, error)
		switch d.exchange {
		case "aster":
			fn = connectors.NewAsterClient(d.apiKey, d.apiSecret, config.AsterBaseURL).GetBalance
		case "oanda":
			fn = connectors.NewOandaClient(d.apiKey, d.accountID, config.OandaBaseURL).GetBalance
		case "tastytrade":
			fn = connectors.NewTastytradeClient(d.apiKey, d.apiSecret, d.accountID, config.TastytradeBaseURL).GetBalance
		case "tradier":
			fn = connectors.NewTradierClient(d.apiKey, d.accountID, config.TradierBaseURL).GetBalance
		case "apex":
			fn = connectors.NewApexClient(d.apiKey, d.apiSecret, d.passphrase, config.ApexBaseURL).GetBalance
		default:
			continue
		}

		fetchers = append(fetchers, balanceAdapter{exchange: d.exchange, fn: fn})
	}

	return fetchers
}
