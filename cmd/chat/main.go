package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/Netflix/go-env"
	"github.com/blugelabs/bluge"
	"github.com/dgraph-io/badger/v4"
	"github.com/gookit/color"
	"github.com/joho/godotenv"
	"github.com/mama165/sdk-go/logs"

	"chat-mirror/auth"
	"chat-mirror/domain"
	"chat-mirror/domain/event"
	"chat-mirror/internal"
	"chat-mirror/notify"
	"chat-mirror/remote/memory"
	"chat-mirror/repositories"
	"chat-mirror/runtime"
	"chat-mirror/runtime/workers"
	"chat-mirror/search"
	"chat-mirror/services"
	"chat-mirror/sink"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Fatal error: %v\n", err)
		os.Exit(1)
	}
}

// run initializes all components, manages the client lifecycle, and
// centralizes error reporting so every defer executes before exit.
func run() error {
	// 1. Configuration & Logger
	_ = godotenv.Load()
	var config internal.Config
	if _, err := env.UnmarshalFromEnviron(&config); err != nil {
		return fmt.Errorf("config error: %w", err)
	}
	log := logs.GetLoggerFromString(config.LogLevel)

	// 2. Local cache (BadgerDB) & search index (Bluge)
	db, err := badger.Open(badger.DefaultOptions(config.BadgerFilepath).
		WithLoggingLevel(badger.WARNING))
	if err != nil {
		return fmt.Errorf("database opening failed: %w", err)
	}
	defer func() {
		log.Info("Closing BadgerDB...")
		_ = db.Close()
	}()

	writer, err := bluge.OpenWriter(bluge.DefaultConfig(config.BlugeFilepath))
	if err != nil {
		return fmt.Errorf("search index opening failed: %w", err)
	}
	defer func() {
		log.Info("Closing search index...")
		_ = writer.Close()
	}()
	index := search.NewIndex(writer, log)

	// 3. Remote backend (in-memory implementation of the server contract)
	store := memory.NewStore(log)
	defer store.Shutdown()
	blobs := memory.NewBlobs()
	authn := memory.NewAuthenticator()
	messaging := memory.NewMessaging()
	session := auth.NewSession()

	// 4. Context & Signals
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 5. Pipeline: registry, channels, supervised workers
	registry := runtime.NewRegistry()
	events := make(chan event.DomainEvent, config.BufferSize)
	writes := make(chan workers.LocalWrite, config.BufferSize)

	messageRepository := repositories.NewMessageRepository(db, log)
	settingsRepository := repositories.NewSettingsRepository(db)

	sup := workers.NewSupervisor(log, config.RestartInterval)
	sup.Add(workers.NewEventFanout(log, registry, events, config.SinkTimeout))
	for range config.NumberOfWorkers {
		sup.Add(workers.NewCacheWriter(log, writes, messageRepository, index, events))
	}

	bridge := runtime.NewBridge(ctx, log, store, session, writes)
	defer bridge.CloseAll()
	aggregator := runtime.NewAggregator(log, store, events)
	defer aggregator.Stop()

	go sup.Run(ctx)
	defer sup.Stop()

	// 6. Services
	chatService := services.NewChatService(log, store, blobs, session,
		messageRepository, bridge, registry, index, events)
	authService := services.NewAuthService(log, authn, store, messaging,
		session, config.AuthTokenDuration)
	groupService := services.NewGroupService(log, store, aggregator, registry)
	settingsService := services.NewSettingsService(log, settingsRepository, registry, events)

	internal.StartDebugServer(db, config.DebugPort, "/inspect", messageMapper, func() map[string]any {
		return map[string]any{"User": session.CurrentUserID()}
	})

	// 7. Interactive loop
	shell := &shell{
		ctx:        ctx,
		config:     config,
		session:    session,
		chats:      chatService,
		authn:      authService,
		groups:     groupService,
		settings:   settingsService,
		aggregator: aggregator,
		registry:   registry,
		timelines:  make(map[string]*sink.Timeline),
		chatList:   sink.NewChatList(),
		groupList:  sink.NewGroupList(),
		alerts:     notify.NewFeed(),
	}
	shell.loop()

	log.Info("Program stopped cleanly")
	return nil
}

type shell struct {
	ctx        context.Context
	config     internal.Config
	session    *auth.Session
	chats      services.IChatService
	authn      services.IAuthService
	groups     services.IGroupService
	settings   services.ISettingsService
	aggregator *runtime.Aggregator
	registry   *runtime.Registry

	activeChat string
	timelines  map[string]*sink.Timeline
	chatList   *sink.ChatList
	groupList  *sink.GroupList
	alerts     *notify.Feed
}

func (s *shell) loop() {
	color.Cyan.Println("chat-mirror ready. Type 'help' for commands.")
	scanner := bufio.NewScanner(os.Stdin)

	for {
		fmt.Print("> ")
		if !scanner.Scan() {
			return
		}
		select {
		case <-s.ctx.Done():
			return
		default:
		}

		fields := strings.Fields(scanner.Text())
		if len(fields) == 0 {
			continue
		}
		if fields[0] == "quit" || fields[0] == "exit" {
			return
		}
		s.dispatch(fields[0], fields[1:])
	}
}

func (s *shell) dispatch(command string, args []string) {
	switch command {
	case "help":
		s.help()
	case "signup":
		s.expectArgs(args, 2, "signup <email> <password>", func() {
			s.report(s.authn.SignUp(s.ctx, args[0], args[1]))
		})
	case "login":
		s.expectArgs(args, 2, "login <email> <password>", func() {
			s.report(s.authn.Login(s.ctx, args[0], args[1]))
			if _, ok := s.authn.State().(domain.AuthSuccess); ok {
				s.watchLists()
			}
		})
	case "logout":
		s.authn.Logout()
		color.Yellow.Println("Signed out")
	case "open":
		s.expectArgs(args, 1, "open <chatId>", func() { s.open(args[0]) })
	case "close":
		s.expectArgs(args, 1, "close <chatId>", func() { s.close(args[0]) })
	case "send":
		s.expectArgs(args, 2, "send <chatId> <text...>", func() {
			s.sendText(args[0], strings.Join(args[1:], " "))
		})
	case "voice":
		s.expectArgs(args, 2, "voice <chatId> <path>", func() {
			if err := s.chats.SendVoiceMessage(s.ctx, args[0], args[1]); err != nil {
				color.Red.Printf("Voice send failed: %v\n", err)
				return
			}
			color.Green.Println("Voice message sent")
		})
	case "list":
		s.expectArgs(args, 1, "list <chatId>", func() { s.list(args[0]) })
	case "chats":
		s.printChats()
	case "groups":
		s.printGroups()
	case "newgroup":
		s.expectArgs(args, 1, "newgroup <name> [memberEmail...]", func() {
			s.newGroup(args[0], args[1:])
		})
	case "invite":
		s.expectArgs(args, 2, "invite <groupId> <email>", func() { s.invite(args[0], args[1]) })
	case "search":
		s.expectArgs(args, 2, "search <chatId> <terms...>", func() {
			s.search(args[0], strings.Join(args[1:], " "))
		})
	case "delete":
		s.expectArgs(args, 2, "delete <chatId> <messageId>", func() {
			if err := s.chats.DeleteMessage(s.ctx, args[0], args[1]); err != nil {
				color.Red.Printf("Delete failed: %v\n", err)
				return
			}
			color.Yellow.Println("Deleted locally")
		})
	case "alerts":
		s.printAlerts()
	case "dark":
		s.expectArgs(args, 1, "dark <on|off>", func() {
			if err := s.settings.SetDarkMode(args[0] == "on"); err != nil {
				color.Red.Printf("Setting failed: %v\n", err)
				return
			}
			color.Green.Printf("Dark mode: %v\n", s.settings.DarkMode())
		})
	default:
		color.Red.Printf("Unknown command %q, try 'help'\n", command)
	}
}

func (s *shell) expectArgs(args []string, min int, usage string, fn func()) {
	if len(args) < min {
		color.Yellow.Println("Usage: " + usage)
		return
	}
	fn()
}

func (s *shell) report(state domain.AuthState) {
	switch st := state.(type) {
	case domain.AuthSuccess:
		color.Green.Printf("Signed in as %s\n", st.UserID)
	case domain.AuthError:
		color.Red.Println(st.Message)
	default:
		color.Yellow.Printf("%T\n", st)
	}
}

func (s *shell) watchLists() {
	userID := s.session.CurrentUserID()
	s.registry.Subscribe("shell", event.ChatsTopic(userID), s.chatList)
	s.registry.Subscribe("shell", event.GroupsTopic(userID), s.groupList)
	s.registry.Subscribe("alerts", event.ChatsTopic(userID), s.alerts)
	s.aggregator.WatchChats(s.ctx, userID)
	s.aggregator.WatchGroups(userID)
}

func (s *shell) open(chatID string) {
	timeline, ok := s.timelines[chatID]
	if !ok {
		timeline = sink.NewTimeline(chatID)
		s.timelines[chatID] = timeline
	}
	s.chats.Watch("shell", chatID, timeline)
	s.chats.Watch("alerts", chatID, s.alerts)
	s.chats.Open(chatID)
	s.activeChat = chatID
	color.Green.Printf("Listening on %s\n", chatID)
}

func (s *shell) close(chatID string) {
	s.chats.Close(chatID)
	s.chats.Unwatch("shell", chatID)
	s.chats.Unwatch("alerts", chatID)
	delete(s.timelines, chatID)
	if s.activeChat == chatID {
		s.activeChat = ""
	}
	color.Yellow.Printf("Closed %s\n", chatID)
}

func (s *shell) sendText(chatID, content string) {
	if err := s.chats.SendMessage(s.ctx, chatID, content); err != nil {
		color.Red.Printf("Send failed: %v\n", err)
		return
	}
	color.Green.Println("Sent")
}

func (s *shell) list(chatID string) {
	messages, err := s.chats.Messages(s.ctx, chatID)
	if err != nil {
		color.Red.Printf("Read failed: %v\n", err)
		return
	}
	printMessages(messages)
}

func (s *shell) printChats() {
	for _, chat := range s.chatList.Chats() {
		color.Cyan.Printf("%s  %-24s %s  %s\n", chat.ID, chat.Name, chat.LastMessage, chat.Time)
	}
}

func (s *shell) printAlerts() {
	banners := s.alerts.Drain()
	if len(banners) == 0 {
		color.Yellow.Println("No pending notifications")
		return
	}
	for _, banner := range banners {
		color.Magenta.Printf("%s: %s\n", banner.Title, banner.Body)
	}
}

func (s *shell) printGroups() {
	for _, group := range s.groupList.Groups() {
		color.Cyan.Printf("%s  %-24s %d member(s)\n", group.ID, group.Name, len(group.Members))
	}
}

func (s *shell) newGroup(name string, memberEmails []string) {
	members := []string{s.session.CurrentUserID()}
	for _, email := range memberEmails {
		userID, err := s.groups.UserIDByEmail(s.ctx, email)
		if err != nil {
			color.Yellow.Printf("No user for %s, skipping\n", email)
			continue
		}
		members = append(members, userID)
	}
	groupID, err := s.groups.CreateGroup(s.ctx, name, members)
	if err != nil {
		color.Red.Printf("Group creation failed: %v\n", err)
		return
	}
	color.Green.Printf("Created %s\n", groupID)
}

func (s *shell) invite(groupID, email string) {
	userID, err := s.groups.UserIDByEmail(s.ctx, email)
	if err != nil {
		color.Red.Printf("No user for %s\n", email)
		return
	}
	if err := s.groups.AddMember(s.ctx, groupID, userID); err != nil {
		color.Red.Printf("Invite failed: %v\n", err)
		return
	}
	color.Green.Printf("Added %s to %s\n", email, groupID)
}

func (s *shell) search(chatID, terms string) {
	messages, err := s.chats.SearchMessages(s.ctx, chatID, terms, s.config.SearchLimit)
	if err != nil {
		color.Red.Printf("Search failed: %v\n", err)
		return
	}
	printMessages(messages)
}

func (s *shell) help() {
	fmt.Println(`signup <email> <password>     create an account
login <email> <password>      sign in
logout                        sign out
open <chatId>                 start mirroring a conversation
close <chatId>                stop mirroring
send <chatId> <text...>       send a text message
voice <chatId> <path>         send a voice message from an audio file
list <chatId>                 show cached messages, newest first
chats                         show the conversation list
groups                        show the group list
newgroup <name> [email...]    create a group
invite <groupId> <email>      add a member to a group
search <chatId> <terms...>    full-text search in the cache
alerts                        show pending notification banners
delete <chatId> <messageId>   remove a message from the cache only
dark <on|off>                 toggle the dark theme
quit                          exit`)
}

func printMessages(messages []domain.Message) {
	for _, message := range messages {
		arrow := "<-"
		if message.IsSentByMe {
			arrow = "->"
		}
		label := message.Content
		if message.IsVoice() {
			label = "[voice] " + message.VoiceURL
		}
		fmt.Printf("%s %s %s  %s (%s)\n",
			arrow, domain.ClockLabel(message.Timestamp), label, message.SenderName, message.ID)
	}
}
