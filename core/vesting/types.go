package vesting

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"time"

	sdkmath "cosmossdk.io/math"
	sdk "github.com/cosmos/cosmos-sdk/types"
)

const (
	// ScheduleSaturatingLinear is the only vesting schedule kind the orchestrator contract accepts.
	ScheduleSaturatingLinear = "saturating_linear"

	// DefaultTitlePrefix is the title prefix used for generated vesting accounts.
	DefaultTitlePrefix = "Symphony Vesting"
	// DefaultDescriptionPrefix is the description prefix used for generated vesting accounts.
	DefaultDescriptionPrefix = "Vesting for Symphony"

	secondsPerDay = 24 * 60 * 60
)

// Amount is a token amount as it appeared in the input, either a JSON number or a JSON string.
// The raw text is kept so that large integers never pass through a float.
type Amount string

// UnmarshalJSON implements json.Unmarshaler.
func (a *Amount) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*a = Amount(s)
		return nil
	}
	if bytes.Equal(b, []byte("null")) {
		*a = ""
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return fmt.Errorf("amount must be a number or a string: %w", err)
	}
	*a = Amount(n.String())
	return nil
}

// VestingEntry is a single allocation owned by a recipient.
type VestingEntry struct {
	Amount   Amount `json:"amount"`
	Denom    string `json:"denom"`
	Category string `json:"category"`
}

// VestingRecipient is a raw recipient as pasted by the operator.
type VestingRecipient struct {
	Recipient string         `json:"recipient"`
	DiscordID string         `json:"discord_id,omitempty"`
	Entries   []VestingEntry `json:"entries"`
}

// ParseRecipients decodes a JSON array of recipients.
func ParseRecipients(r io.Reader) ([]VestingRecipient, error) {
	var recipients []VestingRecipient
	dec := json.NewDecoder(r)
	if err := dec.Decode(&recipients); err != nil {
		return nil, fmt.Errorf("failed to decode vesting recipients: %w", err)
	}
	return recipients, nil
}

// VestingRecord is a normalized (address, amount) pair consumed by the contract.
type VestingRecord struct {
	Address string `json:"address"`
	Amount  string `json:"amount"`
}

// VestingConfiguration holds the submission-wide vesting parameters.
type VestingConfiguration struct {
	ContractCodeID    uint64 `json:"contract_code_id"`
	Schedule          string `json:"schedule"`
	StartTime         string `json:"start_time"`
	Duration          uint64 `json:"duration"`
	TitlePrefix       string `json:"title_prefix"`
	DescriptionPrefix string `json:"description_prefix"`
	Denom             string `json:"denom"`
}

// NewConfiguration builds a configuration whose vesting starts on the first day of the cliff month (UTC).
// cliffMonth is 1-based.
func NewConfiguration(codeID uint64, cliffYear int, cliffMonth time.Month, durationDays uint64, denom string) VestingConfiguration {
	start := time.Date(cliffYear, cliffMonth, 1, 0, 0, 0, 0, time.UTC)
	return VestingConfiguration{
		ContractCodeID:    codeID,
		Schedule:          ScheduleSaturatingLinear,
		StartTime:         strconv.FormatInt(start.UnixNano(), 10),
		Duration:          durationDays * secondsPerDay,
		TitlePrefix:       DefaultTitlePrefix,
		DescriptionPrefix: DefaultDescriptionPrefix,
		Denom:             denom,
	}
}

// Validate checks the configuration before any network call is made.
func (c VestingConfiguration) Validate() error {
	if c.ContractCodeID == 0 {
		return fmt.Errorf("contract code id must be set")
	}
	if c.Schedule != ScheduleSaturatingLinear {
		return fmt.Errorf("unsupported vesting schedule %q", c.Schedule)
	}
	if _, err := strconv.ParseUint(c.StartTime, 10, 64); err != nil {
		return fmt.Errorf("invalid start time %q: must be a nanosecond epoch", c.StartTime)
	}
	if c.Duration == 0 {
		return fmt.Errorf("vesting duration must be positive")
	}
	if err := sdk.ValidateDenom(c.Denom); err != nil {
		return fmt.Errorf("invalid settlement denom: %w", err)
	}
	return nil
}

// BatchVestingMsg is the execute message of the vesting orchestrator contract.
type BatchVestingMsg struct {
	Configuration VestingConfiguration `json:"configuration"`
	Records       []VestingRecord      `json:"records"`
}

// Fee is the fee attached to one transaction attempt.
type Fee struct {
	Amount sdk.Coins `json:"amount"`
	Gas    uint64    `json:"gas"`
}

// GasPlan is the gas limit and fee computed for one batch attempt.
type GasPlan struct {
	GasLimit  uint64      `json:"gas_limit"`
	FeeAmount sdkmath.Int `json:"fee_amount"`
	FeeDenom  string      `json:"fee_denom"`
}

// Fee converts the plan into a transaction fee.
func (p GasPlan) Fee() Fee {
	return Fee{
		Amount: sdk.Coins{sdk.NewCoin(p.FeeDenom, p.FeeAmount)},
		Gas:    p.GasLimit,
	}
}

// ExecuteResult is returned by the contract when a transaction has been included.
type ExecuteResult struct {
	TransactionHash string `json:"transactionHash"`
	Height          int64  `json:"height"`
	GasWanted       uint64 `json:"gasWanted"`
	GasUsed         uint64 `json:"gasUsed"`
}

// BatchResult records one committed batch.
type BatchResult struct {
	BatchNumber      int    `json:"batch_number" msgpack:"batch_number"`
	TransactionHash  string `json:"transaction_hash" msgpack:"transaction_hash"`
	FirstRecord      int    `json:"first_record" msgpack:"first_record"`
	Records          int    `json:"records" msgpack:"records"`
	GasLimit         uint64 `json:"gas_limit" msgpack:"gas_limit"`
	Attempts         int    `json:"attempts" msgpack:"attempts"`
	IndexingDisabled bool   `json:"indexing_disabled,omitempty" msgpack:"indexing_disabled"`
}

// Checkpoint is the resumable progress of a run.
type Checkpoint struct {
	RunID         string        `json:"run_id" msgpack:"run_id"`
	RecordsDigest string        `json:"records_digest" msgpack:"records_digest"`
	NextRecord    int           `json:"next_record" msgpack:"next_record"`
	BatchSize     int           `json:"batch_size" msgpack:"batch_size"`
	NextBatch     int           `json:"next_batch" msgpack:"next_batch"`
	TotalRecords  int           `json:"total_records" msgpack:"total_records"`
	Results       []BatchResult `json:"results" msgpack:"results"`
	UpdatedAt     time.Time     `json:"updated_at" msgpack:"updated_at"`
}

// Done reports whether every record of the run has been committed.
func (c Checkpoint) Done() bool {
	return c.NextRecord >= c.TotalRecords
}
