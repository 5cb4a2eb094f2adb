package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/rs/zerolog"

	"github.com/Delivr-Project/Delivr-API/pkg/backend"
	"github.com/Delivr-Project/Delivr-API/pkg/cache"
	"github.com/Delivr-Project/Delivr-API/pkg/config"
	"github.com/Delivr-Project/Delivr-API/pkg/mail"
)

func main() {
	var (
		configPath = flag.String("config", "delivr.yaml", "Path to the accounts configuration file")
		accountID  = flag.Int64("account", 0, "Account id to use (defaults to the first configured account)")
		folders    = flag.Bool("folders", false, "List all mailboxes")
		tree       = flag.Bool("tree", false, "List mailboxes as a tree")
		status     = flag.String("status", "", "Show the status of a mailbox")
		list       = flag.String("list", "", "List the newest messages of a mailbox")
		limit      = flag.Int("limit", 20, "Number of messages for -list")
		mailbox    = flag.String("mailbox", "INBOX", "Mailbox for -message")
		messageUID = flag.Uint("message", 0, "Fetch a single message by UID")
		sendTest   = flag.Bool("send-test", false, "Send a test mail to the account itself")
		debug      = flag.Bool("debug", false, "Enable debug logging")
	)
	flag.Parse()

	level := zerolog.InfoLevel
	if *debug {
		level = zerolog.DebugLevel
	}
	log := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).Level(level).With().Timestamp().Logger()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}
	if len(cfg.Accounts) == 0 {
		log.Fatal().Msg("no accounts configured")
	}

	acct := &cfg.Accounts[0]
	if *accountID != 0 {
		if acct = cfg.Account(*accountID); acct == nil {
			log.Fatal().Int64("account", *accountID).Msg("unknown account id")
		}
	}

	conns := cache.New(log)
	conns.Start()
	defer conns.Stop()
	defer conns.Clear()

	if err := run(conns, acct, cfg.Timeout(), log, options{
		folders:    *folders,
		tree:       *tree,
		status:     *status,
		list:       *list,
		limit:      *limit,
		mailbox:    *mailbox,
		messageUID: uint32(*messageUID),
		sendTest:   *sendTest,
	}); err != nil {
		log.Fatal().Err(err).Msg("command failed")
	}
}

type options struct {
	folders    bool
	tree       bool
	status     string
	list       string
	limit      int
	mailbox    string
	messageUID uint32
	sendTest   bool
}

func run(conns *cache.Cache, acct *config.Account, timeout time.Duration, log zerolog.Logger, opts options) error {
	if opts.sendTest {
		smtp := backend.NewSMTPAccount(acct.SMTP, log)
		result, err := smtp.SendMail(&mail.Mail{
			From:    []mail.Address{{Address: acct.SMTP.Username}},
			To:      []mail.Address{{Address: acct.SMTP.Username}},
			Subject: fmt.Sprintf("Test mail - %s", time.Now().Format("2006-01-02 15:04:05")),
			Body:    &mail.Body{Type: mail.BodyText, Content: "This is a test mail sent from the delivr-mail CLI."},
		})
		if err != nil {
			return err
		}
		return printJSON(result)
	}

	imap := conns.GetOrCreate(acct.ID, func() cache.Conn {
		return backend.NewIMAPAccount(acct.IMAP, timeout, log)
	}).(*backend.IMAPAccount)

	if err := imap.Connect(); err != nil {
		return err
	}

	switch {
	case opts.tree:
		nodes, err := imap.ListMailboxTree()
		if err != nil {
			return err
		}
		return printJSON(nodes)

	case opts.folders:
		boxes, err := imap.ListMailboxes()
		if err != nil {
			return err
		}
		return printJSON(boxes)

	case opts.status != "":
		st, err := imap.GetMailboxStatus(opts.status)
		if err != nil {
			return err
		}
		if st == nil {
			return fmt.Errorf("mailbox %s not found", opts.status)
		}
		return printJSON(st)

	case opts.list != "":
		mails, err := imap.ListMessages(opts.list, opts.limit)
		if err != nil {
			return err
		}
		redacted := make([]*mail.Mail, len(mails))
		for i, m := range mails {
			redacted[i] = m.Redacted()
		}
		return printJSON(redacted)

	case opts.messageUID != 0:
		m, err := imap.GetMessage(opts.mailbox, opts.messageUID)
		if err != nil {
			return err
		}
		if m == nil {
			return fmt.Errorf("message %d not found in %s", opts.messageUID, opts.mailbox)
		}
		return printJSON(m.Redacted())
	}

	flag.Usage()
	return nil
}

func printJSON(v interface{}) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(data))
	return nil
}
