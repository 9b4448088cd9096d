package utils

import (
	"fmt"
	"math/bits"
	"sort"
	"strconv"
	"strings"

	"github.com/ccoveille/go-safecast"
	"github.com/cryptix-network/cryptix-wallet-go/types"
)

const (
	SompiPerCryptix = uint64(100_000_000)
	cryptixDecimals = 8
)

// CoinSelect picks mature utxos, oldest first, until amount+fee is covered.
// When the change would be dust, the next utxo is added if there is one,
// otherwise the dust is left to the fee.
func CoinSelect(
	utxos []types.Utxo, amount, fee, dust uint64, isMature func(types.Utxo) bool,
) ([]types.Utxo, uint64, error) {
	candidates := make([]types.Utxo, 0, len(utxos))
	for _, u := range utxos {
		if isMature(u) {
			candidates = append(candidates, u)
		}
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		if candidates[i].BlockDaaScore == candidates[j].BlockDaaScore {
			return candidates[i].Amount > candidates[j].Amount
		}
		return candidates[i].BlockDaaScore < candidates[j].BlockDaaScore
	})

	target, carry := bits.Add64(amount, fee, 0)
	if carry != 0 {
		return nil, 0, fmt.Errorf("amount %d plus fee %d overflows", amount, fee)
	}
	selected := make([]types.Utxo, 0)
	notSelected := make([]types.Utxo, 0)
	selectedAmount := uint64(0)

	for _, u := range candidates {
		if selectedAmount >= target {
			notSelected = append(notSelected, u)
			continue
		}
		selected = append(selected, u)
		selectedAmount += u.Amount
	}

	if selectedAmount < target {
		return nil, 0, fmt.Errorf(
			"not enough mature funds to cover amount %d plus fee %d", amount, fee,
		)
	}

	change := selectedAmount - target
	if change > 0 && change < dust {
		if len(notSelected) > 0 {
			selected = append(selected, notSelected[0])
			change += notSelected[0].Amount
		} else {
			change = 0
		}
	}

	return selected, change, nil
}

func FormatSompi(sompi uint64) string {
	whole := sompi / SompiPerCryptix
	frac := sompi % SompiPerCryptix
	if frac == 0 {
		return strconv.FormatUint(whole, 10)
	}
	fracStr := strings.TrimRight(fmt.Sprintf("%08d", frac), "0")
	return fmt.Sprintf("%d.%s", whole, fracStr)
}

func ParseSompi(amount string) (uint64, error) {
	amount = strings.TrimSpace(amount)
	if amount == "" {
		return 0, fmt.Errorf("empty amount")
	}
	if strings.HasPrefix(amount, "-") {
		return 0, fmt.Errorf("negative amount %s", amount)
	}

	wholeStr, fracStr, hasFrac := strings.Cut(amount, ".")
	if wholeStr == "" {
		wholeStr = "0"
	}
	whole, err := strconv.ParseUint(wholeStr, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid amount %s: %w", amount, err)
	}
	if whole > (^uint64(0))/SompiPerCryptix {
		return 0, fmt.Errorf("amount %s overflows", amount)
	}

	var frac uint64
	if hasFrac {
		if len(fracStr) == 0 || len(fracStr) > cryptixDecimals {
			return 0, fmt.Errorf("invalid amount %s: at most %d decimals", amount, cryptixDecimals)
		}
		fracStr += strings.Repeat("0", cryptixDecimals-len(fracStr))
		frac, err = strconv.ParseUint(fracStr, 10, 64)
		if err != nil {
			return 0, fmt.Errorf("invalid amount %s: %w", amount, err)
		}
	}

	total := whole*SompiPerCryptix + frac
	if total < whole*SompiPerCryptix {
		return 0, fmt.Errorf("amount %s overflows", amount)
	}
	return total, nil
}

// ToIndex converts a derivation counter to the uint32 BIP32 expects.
func ToIndex(i int) (uint32, error) {
	idx, err := safecast.ToUint32(i)
	if err != nil {
		return 0, fmt.Errorf("invalid derivation index %d: %w", i, err)
	}
	return idx, nil
}

func GroupBy[T any](items []T, keyFn func(T) string) map[string][]T {
	groups := make(map[string][]T)
	for _, item := range items {
		key := keyFn(item)
		groups[key] = append(groups[key], item)
	}
	return groups
}
