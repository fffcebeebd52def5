package models

// Program ids referenced by program-interaction missions.
const (
	JupiterProgramID  = "JUP6LkbZbjS1jKKwapdHNy74zcZ3tLUZoi5QNyVTaV4"
	MemoProgramID     = "MemoSq4gqABAXKb96qnH8TysNcWxMyWCqXgDLGmfcHr"
	StakeProgramID    = "Stake11111111111111111111111111111111111111"
	WhirlpoolProgram  = "whirLbMiicVdio4qvUfM5KAg6Ct8VwpYzGff3uctyCc"
	RaydiumAMMProgram = "675kPX9MHTjS2zt1qfr1NYHuzeLXfQM9H24wFSUt1Mp8"

	OfficialXAccount = "VibeProofApp"
	// Pinned announcement post used by reply missions.
	AnnouncementTweetID = "1891234567890123456"
)

// DailyMissionPool is the candidate pool for the daily rotation. Order matters:
// rotation indexes into this slice, so append new templates at the end.
var DailyMissionPool = []MissionTemplate{
	{
		ID:                 "daily_tx",
		Title:              "Make a transaction",
		Description:        "Send any confirmed transaction from your wallet today",
		Category:           CategoryRepeatable,
		VerificationType:   VerifySolanaRecentTx,
		VerificationConfig: VerificationConfig{"hours": 24},
		XPReward:           100,
		Active:             true,
		Recurrence:         RecurrenceDaily,
	},
	{
		ID:                 "daily_balance",
		Title:              "Hold 0.1 SOL",
		Description:        "Keep at least 0.1 SOL in your wallet",
		Category:           CategoryRepeatable,
		VerificationType:   VerifySolanaMinBalance,
		VerificationConfig: VerificationConfig{"min_balance": 0.1},
		XPReward:           50,
		Active:             true,
		Recurrence:         RecurrenceDaily,
	},
	{
		ID:                 "daily_self_transfer",
		Title:              "Self transfer",
		Description:        "Sign and pay for a transfer from your own wallet",
		Category:           CategoryRepeatable,
		VerificationType:   VerifySolanaSelfTransfer,
		VerificationConfig: VerificationConfig{"hours": 24},
		XPReward:           150,
		Active:             true,
		Recurrence:         RecurrenceDaily,
	},
	{
		ID:                 "daily_jupiter",
		Title:              "Swap on Jupiter",
		Description:        "Route a swap through Jupiter",
		Category:           CategoryRepeatable,
		VerificationType:   VerifySolanaProgramInteraction,
		VerificationConfig: VerificationConfig{"program_id": JupiterProgramID, "hours": 24},
		XPReward:           200,
		Active:             true,
		Recurrence:         RecurrenceDaily,
	},
	{
		ID:                 "daily_checkin",
		Title:              "Daily check-in",
		Description:        "Open the app and check in",
		Category:           CategoryRepeatable,
		VerificationType:   VerifyAppAction,
		VerificationConfig: VerificationConfig{"action": "checked_in_today"},
		XPReward:           25,
		Active:             true,
		Recurrence:         RecurrenceDaily,
	},
	{
		ID:                 "daily_post",
		Title:              "Post your vibe",
		Description:        "Post on X with #VibeProof and your wallet tag",
		Category:           CategoryRepeatable,
		VerificationType:   VerifyXPostHashtag,
		VerificationConfig: VerificationConfig{"hashtag": "VibeProof", "require_wallet_suffix": true, "hours": 24},
		XPReward:           150,
		Active:             true,
		Recurrence:         RecurrenceDaily,
	},
	{
		ID:                 "daily_memo",
		Title:              "Write an on-chain memo",
		Description:        "Attach a memo to any transaction",
		Category:           CategoryRepeatable,
		VerificationType:   VerifySolanaProgramInteraction,
		VerificationConfig: VerificationConfig{"program_id": MemoProgramID, "hours": 24},
		XPReward:           100,
		Active:             true,
		Recurrence:         RecurrenceDaily,
	},
	{
		ID:                 "daily_stake",
		Title:              "Touch your stake",
		Description:        "Delegate, split or withdraw a stake account",
		Category:           CategoryRepeatable,
		VerificationType:   VerifySolanaProgramInteraction,
		VerificationConfig: VerificationConfig{"program_id": StakeProgramID, "hours": 24},
		XPReward:           200,
		Active:             true,
		Recurrence:         RecurrenceDaily,
	},
	{
		ID:                 "daily_orca",
		Title:              "Trade on Orca",
		Description:        "Swap through an Orca whirlpool",
		Category:           CategoryRepeatable,
		VerificationType:   VerifySolanaProgramInteraction,
		VerificationConfig: VerificationConfig{"program_id": WhirlpoolProgram, "hours": 24},
		XPReward:           150,
		Active:             true,
		Recurrence:         RecurrenceDaily,
	},
	{
		ID:                 "daily_reply",
		Title:              "Join the conversation",
		Description:        "Reply to the pinned VibeProof post",
		Category:           CategoryRepeatable,
		VerificationType:   VerifyXReply,
		VerificationConfig: VerificationConfig{"tweet_id": AnnouncementTweetID, "hours": 24},
		XPReward:           75,
		Active:             true,
		Recurrence:         RecurrenceDaily,
	},
}

// WeeklyMissionPool is the candidate pool for the weekly rotation.
var WeeklyMissionPool = []MissionTemplate{
	{
		ID:                 "weekly_balance",
		Title:              "Hold 1 SOL",
		Description:        "Keep at least 1 SOL in your wallet",
		Category:           CategoryRepeatable,
		VerificationType:   VerifySolanaMinBalance,
		VerificationConfig: VerificationConfig{"min_balance": 1.0},
		XPReward:           300,
		Active:             true,
		Recurrence:         RecurrenceWeekly,
	},
	{
		ID:                 "weekly_raydium",
		Title:              "Provide on Raydium",
		Description:        "Interact with a Raydium AMM pool this week",
		Category:           CategoryRepeatable,
		VerificationType:   VerifySolanaProgramInteraction,
		VerificationConfig: VerificationConfig{"program_id": RaydiumAMMProgram, "hours": 168, "limit": 25},
		XPReward:           400,
		Active:             true,
		Recurrence:         RecurrenceWeekly,
	},
	{
		ID:                 "weekly_thread",
		Title:              "Weekly thread",
		Description:        "Post a #VibeProofWeekly recap with your wallet tag",
		Category:           CategoryRepeatable,
		VerificationType:   VerifyXPostHashtag,
		VerificationConfig: VerificationConfig{"hashtag": "VibeProofWeekly", "require_wallet_suffix": true, "hours": 168},
		XPReward:           300,
		Active:             true,
		Recurrence:         RecurrenceWeekly,
	},
	{
		ID:                 "weekly_reply",
		Title:              "Weekly shout-out",
		Description:        "Reply to the pinned VibeProof post this week",
		Category:           CategoryRepeatable,
		VerificationType:   VerifyXReply,
		VerificationConfig: VerificationConfig{"tweet_id": AnnouncementTweetID, "hours": 168},
		XPReward:           200,
		Active:             true,
		Recurrence:         RecurrenceWeekly,
	},
	{
		ID:                 "weekly_self_transfer",
		Title:              "Weekly self transfer",
		Description:        "Pay for a transfer from your own wallet this week",
		Category:           CategoryRepeatable,
		VerificationType:   VerifySolanaSelfTransfer,
		VerificationConfig: VerificationConfig{"hours": 168, "limit": 25},
		XPReward:           300,
		Active:             true,
		Recurrence:         RecurrenceWeekly,
	},
	{
		ID:                 "weekly_showcase",
		Title:              "dApp showcase",
		Description:        "Share a screenshot of your favourite dApp",
		Category:           CategoryRepeatable,
		VerificationType:   VerifyManual,
		VerificationConfig: VerificationConfig{},
		XPReward:           200,
		Active:             true,
		Recurrence:         RecurrenceWeekly,
	},
}

// OneTimeMissions can be completed once per wallet, ever.
var OneTimeMissions = []MissionTemplate{
	{
		ID:                 "ot_connect",
		Title:              "Connect your wallet",
		Description:        "Create your VibeProof profile",
		Category:           CategoryOneTime,
		VerificationType:   VerifyAppAction,
		VerificationConfig: VerificationConfig{"action": "profile_created"},
		XPReward:           100,
		Active:             true,
		Recurrence:         RecurrenceOneTime,
	},
	{
		ID:                 "ot_username",
		Title:              "Pick a username",
		Description:        "Set a username on your profile",
		Category:           CategoryOneTime,
		VerificationType:   VerifyAppAction,
		VerificationConfig: VerificationConfig{"action": "username_set"},
		XPReward:           100,
		Active:             true,
		Recurrence:         RecurrenceOneTime,
	},
	{
		ID:                 "ot_link_x",
		Title:              "Link X",
		Description:        "Link your X account",
		Category:           CategoryOneTime,
		VerificationType:   VerifyAppAction,
		VerificationConfig: VerificationConfig{"action": "social_linked", "provider": ProviderX},
		XPReward:           200,
		Active:             true,
		Recurrence:         RecurrenceOneTime,
	},
	{
		ID:                 "ot_follow",
		Title:              "Follow VibeProof",
		Description:        "Follow @" + OfficialXAccount + " on X",
		Category:           CategoryOneTime,
		VerificationType:   VerifyXFollow,
		VerificationConfig: VerificationConfig{"target_username": OfficialXAccount},
		XPReward:           200,
		Active:             true,
		Recurrence:         RecurrenceOneTime,
	},
	{
		ID:                 "ot_first_tx",
		Title:              "First steps on-chain",
		Description:        "Have any confirmed transaction in the last 30 days",
		Category:           CategoryOneTime,
		VerificationType:   VerifySolanaRecentTx,
		VerificationConfig: VerificationConfig{"hours": 720, "limit": 20},
		XPReward:           250,
		Active:             true,
		Recurrence:         RecurrenceOneTime,
	},
	{
		ID:                 "ot_hold",
		Title:              "Diamond hands",
		Description:        "Hold at least 0.5 SOL",
		Category:           CategoryOneTime,
		VerificationType:   VerifySolanaMinBalance,
		VerificationConfig: VerificationConfig{"min_balance": 0.5},
		XPReward:           300,
		Active:             true,
		Recurrence:         RecurrenceOneTime,
	},
}
