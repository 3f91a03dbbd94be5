package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/sethvargo/go-retry"
	"github.com/valyala/fasthttp"
)

const playerEndpoint = "https://api.wynncraft.com/v3/player/%s?fullResult"

// Upstream failure taxonomy. The tracker handles all three the same way
// (skip and retry next cycle) but logs them apart.
var (
	ErrUnreachable = errors.New("wynncraft api unreachable")
	ErrNotFound    = errors.New("player not found upstream")
	ErrMalformed   = errors.New("malformed wynncraft payload")
)

type WynncraftClient struct {
	client *fasthttp.Client
}

func NewWynncraftClient() *WynncraftClient {
	return &WynncraftClient{
		client: &fasthttp.Client{
			MaxConnsPerHost:     100,
			ReadTimeout:         10 * time.Second,
			WriteTimeout:        10 * time.Second,
			MaxIdleConnDuration: 1 * time.Minute,
		},
	}
}

// FetchPlayer fetches the full player payload, characters included.
// Transport-level failures are retried briefly; HTTP 404 and undecodable
// payloads are not.
func (c *WynncraftClient) FetchPlayer(ctx context.Context, playerUUID string) (*PlayerResponse, error) {
	url := fmt.Sprintf(playerEndpoint, playerUUID)

	var result PlayerResponse
	backoff := retry.WithMaxRetries(2, retry.NewFibonacci(500*time.Millisecond))

	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		req := fasthttp.AcquireRequest()
		resp := fasthttp.AcquireResponse()
		defer fasthttp.ReleaseRequest(req)
		defer fasthttp.ReleaseResponse(resp)

		req.SetRequestURI(url)
		req.Header.SetMethod(fasthttp.MethodGet)

		var err error
		if deadline, ok := ctx.Deadline(); ok {
			err = c.client.DoDeadline(req, resp, deadline)
		} else {
			err = c.client.Do(req, resp)
		}
		if err != nil {
			return retry.RetryableError(fmt.Errorf("%w: %v", ErrUnreachable, err))
		}

		switch code := resp.StatusCode(); {
		case code == fasthttp.StatusOK:
		case code == fasthttp.StatusNotFound:
			return fmt.Errorf("player %s: %w", playerUUID, ErrNotFound)
		case code >= 500:
			return retry.RetryableError(fmt.Errorf("%w: status %d", ErrUnreachable, code))
		default:
			return fmt.Errorf("%w: status %d", ErrUnreachable, code)
		}

		if err := json.Unmarshal(resp.Body(), &result); err != nil {
			return fmt.Errorf("%w: %v", ErrMalformed, err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &result, nil
}

type PlayerResponse struct {
	UUID      string   `json:"uuid"`
	Username  string   `json:"username"`
	Rank      *string  `json:"rank"`
	FirstJoin *string  `json:"firstJoin"`
	Playtime  *float64 `json:"playtime"`

	Characters map[string]CharacterPayload `json:"characters"`
}

type CharacterPayload struct {
	Type     *string `json:"type"`
	Nickname *string `json:"nickname"`

	Level             *int64   `json:"level"`
	TotalLevel        *int64   `json:"totalLevel"`
	XP                *int64   `json:"xp"`
	XPPercent         *float64 `json:"xpPercent"`
	Playtime          *float64 `json:"playtime"`
	MobsKilled        *int64   `json:"mobsKilled"`
	ChestsFound       *int64   `json:"chestsFound"`
	BlocksWalked      *int64   `json:"blocksWalked"`
	ItemsIdentified   *int64   `json:"itemsIdentified"`
	Logins            *int64   `json:"logins"`
	Deaths            *int64   `json:"deaths"`
	Discoveries       *int64   `json:"discoveries"`
	ContentCompletion *int64   `json:"contentCompletion"`
	Wars              *int64   `json:"wars"`
	WorldEvents       *int64   `json:"worldEvents"`
	Caves             *int64   `json:"caves"`
	Lootruns          *int64   `json:"lootruns"`

	PvP struct {
		Kills  *int64 `json:"kills"`
		Deaths *int64 `json:"deaths"`
	} `json:"pvp"`

	Dungeons struct {
		Total *int64           `json:"total"`
		List  map[string]int64 `json:"list"`
	} `json:"dungeons"`

	Raids struct {
		Total *int64           `json:"total"`
		List  map[string]int64 `json:"list"`
	} `json:"raids"`

	Quests      []string                     `json:"quests"`
	SkillPoints map[string]int64             `json:"skillPoints"`
	Professions map[string]ProfessionPayload `json:"professions"`
}

type ProfessionPayload struct {
	Level     int64    `json:"level"`
	XPPercent *float64 `json:"xpPercent"`
}
