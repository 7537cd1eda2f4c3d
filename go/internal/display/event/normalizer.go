package event

import (
	"encoding/json"
	"errors"
	"fmt"
)

// ErrUnknownEvent marks a wire name outside the alias table.
var ErrUnknownEvent = errors.New("unknown event name")

// ErrMalformed marks a payload that cannot be coerced into its variant.
var ErrMalformed = errors.New("malformed event payload")

// aliases maps every wire name the authority has ever used to its
// canonical variant. Multiple names per variant are deliberate: the
// backend emits legacy duplicates and both must behave identically.
var aliases = map[string]Type{
	"game:created": TypeGameCreated,
	"game_started": TypeGameCreated,

	"number_drawn": TypeNumberDrawn,
	"number:drawn": TypeNumberDrawn,

	"game:paused":  TypeGamePaused,
	"game:resumed": TypeGameResumed,

	"game:reset": TypeGameReset,
	"game_reset": TypeGameReset,

	"game_comprehensive_reset": TypeComprehensiveReset,

	"game_ended":     TypeGameEnded,
	"end_game":       TypeGameEnded,
	"game_completed": TypeGameEnded,

	"bets_placed":         TypeBetsPlaced,
	"placed_bets_updated": TypeBetsPlaced,
	"game_data_updated":   TypeBetsPlaced,

	"game_data":     TypeGameSnapshot,
	"get_game_data": TypeGameSnapshot,

	"cartela_selected":   TypeCartelaSelected,
	"cartela_deselected": TypeCartelaDeselected,
	"cartelas_cleared":   TypeCartelasCleared,
	"cartela_verified":   TypeCartelaVerified,

	"close-verification-modal":  TypeVerificationClosed,
	"verification_modal_closed": TypeVerificationClosed,

	"display:shuffle_animation": TypeShuffleAnimation,
	"display:unauthorized":      TypeUnauthorized,
}

// Canonical resolves a wire name to its canonical type.
func Canonical(name string) (Type, bool) {
	t, ok := aliases[name]
	return t, ok
}

// wire payload shapes. Fields the backend sometimes omits are pointers so
// absence survives decoding.

type wireGameCreated struct {
	GameID        string   `json:"gameId"`
	Status        string   `json:"status"`
	CalledNumbers []int    `json:"calledNumbers"`
	WinStack      *float64 `json:"winStack"`
	Cartelas      []int    `json:"cartelas"`
}

type wireNumberDrawn struct {
	Number        *int  `json:"number"`
	CalledNumbers []int `json:"calledNumbers"`
}

type wireGameReset struct {
	GameID        string   `json:"gameId"`
	CalledNumbers []int    `json:"calledNumbers"`
	Cartelas      *[]int   `json:"cartelas"`
	TotalStack    *float64 `json:"totalStack"`
	TotalWinStack *float64 `json:"totalWinStack"`
}

type wireComprehensiveReset struct {
	NewGameID string `json:"newGameId"`
}

type wireGameEnded struct {
	GameID string `json:"gameId"`
}

type wireBets struct {
	GameID          string   `json:"gameId"`
	Stack           *float64 `json:"stack"`
	TotalStack      *float64 `json:"totalStack"`
	TotalWinStack   *float64 `json:"totalWinStack"`
	TotalShopMargin *float64 `json:"totalShopMargin"`
	TotalSystemFee  *float64 `json:"totalSystemFee"`
	NetPrizePool    *float64 `json:"netPrizePool"`
	NetShopProfit   *float64 `json:"netShopProfit"`
	Cartelas        *[]int   `json:"cartelas"`
}

type wireSnapshot struct {
	ID       string `json:"id"`
	Status   string `json:"status"`
	GameData struct {
		GameID          string   `json:"gameId"`
		Status          string   `json:"status"`
		CalledNumbers   []int    `json:"calledNumbers"`
		CurrentNumber   *int     `json:"currentNumber"`
		Cartelas        *[]int   `json:"cartelas"`
		Stack           *float64 `json:"stack"`
		TotalStack      *float64 `json:"totalStack"`
		TotalWinStack   *float64 `json:"totalWinStack"`
		TotalShopMargin *float64 `json:"totalShopMargin"`
		TotalSystemFee  *float64 `json:"totalSystemFee"`
		NetPrizePool    *float64 `json:"netPrizePool"`
		NetShopProfit   *float64 `json:"netShopProfit"`
	} `json:"gameData"`
}

type wireCartela struct {
	CartelaID *int `json:"cartelaId"`
}

type wireSession struct {
	SessionID string `json:"sessionId"`
}

type wireVerified struct {
	CartelaID      *int   `json:"cartelaId"`
	Won            *bool  `json:"won"`
	Pattern        string `json:"pattern"`
	MatchedNumbers []int  `json:"matchedNumbers"`
}

type wireShuffle struct {
	Action string `json:"action"`
}

// Normalize classifies one raw frame into the Event union. Unknown names
// return ErrUnknownEvent; payloads missing identifying fields or with
// out-of-range values return an error wrapping ErrMalformed. Callers log
// and drop; nothing here is fatal.
func Normalize(name string, data json.RawMessage) (Event, error) {
	typ, ok := Canonical(name)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownEvent, name)
	}
	if len(data) == 0 {
		data = []byte("{}")
	}

	switch typ {
	case TypeGameCreated:
		var w wireGameCreated
		if err := decode(data, &w); err != nil {
			return nil, err
		}
		if w.GameID == "" {
			return nil, fmt.Errorf("%w: %s without gameId", ErrMalformed, name)
		}
		return GameCreated{
			GameID:        w.GameID,
			Status:        w.Status,
			CalledNumbers: w.CalledNumbers,
			WinStack:      w.WinStack,
			Cartelas:      w.Cartelas,
		}, nil

	case TypeNumberDrawn:
		var w wireNumberDrawn
		if err := decode(data, &w); err != nil {
			return nil, err
		}
		if w.Number == nil {
			return nil, fmt.Errorf("%w: %s without number", ErrMalformed, name)
		}
		if *w.Number < 1 || *w.Number > 75 {
			return nil, fmt.Errorf("%w: number %d outside board range", ErrMalformed, *w.Number)
		}
		return NumberDrawn{Number: *w.Number, CalledNumbers: w.CalledNumbers}, nil

	case TypeGamePaused:
		return GamePaused{}, nil

	case TypeGameResumed:
		return GameResumed{}, nil

	case TypeGameReset:
		var w wireGameReset
		if err := decode(data, &w); err != nil {
			return nil, err
		}
		return GameReset{
			GameID:        w.GameID,
			CalledNumbers: w.CalledNumbers,
			Cartelas:      w.Cartelas,
			TotalStack:    w.TotalStack,
			TotalWinStack: w.TotalWinStack,
		}, nil

	case TypeComprehensiveReset:
		var w wireComprehensiveReset
		if err := decode(data, &w); err != nil {
			return nil, err
		}
		return ComprehensiveReset{NewGameID: w.NewGameID}, nil

	case TypeGameEnded:
		var w wireGameEnded
		if err := decode(data, &w); err != nil {
			return nil, err
		}
		return GameEnded{GameID: w.GameID}, nil

	case TypeBetsPlaced:
		var w wireBets
		if err := decode(data, &w); err != nil {
			return nil, err
		}
		return BetsPlaced{
			GameID:          w.GameID,
			Stack:           w.Stack,
			TotalStack:      w.TotalStack,
			TotalWinStack:   w.TotalWinStack,
			TotalShopMargin: w.TotalShopMargin,
			TotalSystemFee:  w.TotalSystemFee,
			NetPrizePool:    w.NetPrizePool,
			NetShopProfit:   w.NetShopProfit,
			Cartelas:        w.Cartelas,
		}, nil

	case TypeGameSnapshot:
		var w wireSnapshot
		if err := decode(data, &w); err != nil {
			return nil, err
		}
		status := w.GameData.Status
		if status == "" {
			status = w.Status
		}
		gameID := w.GameData.GameID
		if gameID == "" {
			gameID = w.ID
		}
		return GameSnapshot{
			SessionID:       w.ID,
			GameID:          gameID,
			Status:          status,
			CalledNumbers:   w.GameData.CalledNumbers,
			CurrentNumber:   w.GameData.CurrentNumber,
			Cartelas:        w.GameData.Cartelas,
			Stack:           w.GameData.Stack,
			TotalStack:      w.GameData.TotalStack,
			TotalWinStack:   w.GameData.TotalWinStack,
			TotalShopMargin: w.GameData.TotalShopMargin,
			TotalSystemFee:  w.GameData.TotalSystemFee,
			NetPrizePool:    w.GameData.NetPrizePool,
			NetShopProfit:   w.GameData.NetShopProfit,
		}, nil

	case TypeCartelaSelected, TypeCartelaDeselected:
		var w wireCartela
		if err := decode(data, &w); err != nil {
			return nil, err
		}
		if w.CartelaID == nil || *w.CartelaID < 1 {
			return nil, fmt.Errorf("%w: %s without cartelaId", ErrMalformed, name)
		}
		if typ == TypeCartelaSelected {
			return CartelaSelected{CartelaID: *w.CartelaID}, nil
		}
		return CartelaDeselected{CartelaID: *w.CartelaID}, nil

	case TypeCartelasCleared:
		var w wireSession
		if err := decode(data, &w); err != nil {
			return nil, err
		}
		return CartelasCleared{SessionID: w.SessionID}, nil

	case TypeCartelaVerified:
		var w wireVerified
		if err := decode(data, &w); err != nil {
			return nil, err
		}
		if w.CartelaID == nil || w.Won == nil {
			return nil, fmt.Errorf("%w: %s missing cartelaId or outcome", ErrMalformed, name)
		}
		return CartelaVerified{
			CartelaID:      *w.CartelaID,
			Won:            *w.Won,
			Pattern:        w.Pattern,
			MatchedNumbers: w.MatchedNumbers,
		}, nil

	case TypeVerificationClosed:
		var w wireSession
		if err := decode(data, &w); err != nil {
			return nil, err
		}
		return VerificationClosed{SessionID: w.SessionID}, nil

	case TypeShuffleAnimation:
		var w wireShuffle
		if err := decode(data, &w); err != nil {
			return nil, err
		}
		if w.Action != "start" && w.Action != "complete" {
			return nil, fmt.Errorf("%w: shuffle action %q", ErrMalformed, w.Action)
		}
		return ShuffleAnimation{Action: w.Action}, nil

	case TypeUnauthorized:
		return Unauthorized{}, nil
	}

	return nil, fmt.Errorf("%w: %q", ErrUnknownEvent, name)
}

func decode(data json.RawMessage, v any) error {
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	return nil
}
