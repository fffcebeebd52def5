package services

import (
	"context"
	"fmt"
	"strings"
	"time"
	"unicode"
	"unicode/utf8"

	"vibeproof/models"
)

const walletSuffixLen = 6

// WalletSuffix is the tag a post must carry to bind it to a wallet: the
// wallet's last six characters, matched case-sensitively.
func WalletSuffix(wallet string) string {
	if len(wallet) <= walletSuffixLen {
		return wallet
	}
	return wallet[len(wallet)-walletSuffixLen:]
}

// hasHashtag reports whether text carries #tag as a whole hashtag, ignoring case.
// #VibeProofWeekly does not carry #VibeProof.
func hasHashtag(text, tag string) bool {
	text = strings.ToLower(text)
	needle := "#" + strings.ToLower(tag)
	for i := strings.Index(text, needle); i >= 0; {
		end := i + len(needle)
		next, _ := utf8.DecodeRuneInString(text[end:])
		if end == len(text) || !isHashtagRune(next) {
			return true
		}
		j := strings.Index(text[end:], needle)
		if j < 0 {
			break
		}
		i = end + j
	}
	return false
}

func isHashtagRune(r rune) bool {
	return r == '_' || unicode.IsLetter(r) || unicode.IsDigit(r)
}

// SocialChecks evaluates X missions for the account linked to a wallet.
type SocialChecks struct {
	Accounts AppStateReader
	X        XAPI
	Now      func() time.Time
}

func NewSocialChecks(accounts AppStateReader, x XAPI) *SocialChecks {
	return &SocialChecks{Accounts: accounts, X: x, Now: time.Now}
}

// linked returns the X account, or a not-met result when none is linked.
func (s *SocialChecks) linked(ctx context.Context, principal string) (*models.SocialAccount, *VerificationResult, error) {
	if s.X == nil {
		return nil, nil, fmt.Errorf("%w: x api client not configured", ErrAdapterUnavailable)
	}
	acct, err := s.Accounts.LinkedAccount(ctx, principal, models.ProviderX)
	if err != nil {
		return nil, nil, fmt.Errorf("loading linked account: %w", err)
	}
	if acct == nil || acct.AccessToken == "" {
		res := notMet("Link your X account first")
		return nil, &res, nil
	}
	return acct, nil, nil
}

// PostHashtag: a recent post contains the hashtag and, when required, the wallet suffix
// in the same post.
func (s *SocialChecks) PostHashtag(ctx context.Context, principal string, cfg models.VerificationConfig) (VerificationResult, error) {
	tag := strings.TrimPrefix(cfgString(cfg, "hashtag"), "#")
	if tag == "" {
		return VerificationResult{}, missingConfig("hashtag")
	}
	acct, res, err := s.linked(ctx, principal)
	if err != nil || res != nil {
		return deref(res), err
	}

	window := cfgWindow(cfg, 72)
	tweets, err := s.X.RecentTweets(ctx, acct.AccessToken, acct.ExternalUserID, s.Now().Add(-window))
	if err != nil {
		return VerificationResult{}, err
	}

	needSuffix := cfgBool(cfg, "require_wallet_suffix")
	suffix := WalletSuffix(principal)
	sawHashtag := false
	for _, t := range tweets {
		if !hasHashtag(t.Text, tag) {
			continue
		}
		sawHashtag = true
		if needSuffix && !strings.Contains(t.Text, suffix) {
			continue
		}
		proof := map[string]any{"tweet_id": t.ID, "hashtag": "#" + tag}
		if needSuffix {
			proof["wallet_suffix"] = suffix
		}
		return passed("Found a matching post", proof), nil
	}

	if sawHashtag && needSuffix {
		return notMet("Found #%s but no post also contains your wallet tag %s", tag, suffix), nil
	}
	return notMet("No post with #%s in the last %s", tag, formatWindow(window)), nil
}

// Reply: a recent post of the linked account replies to tweet_id.
func (s *SocialChecks) Reply(ctx context.Context, principal string, cfg models.VerificationConfig) (VerificationResult, error) {
	target := cfgString(cfg, "tweet_id")
	if target == "" {
		return VerificationResult{}, missingConfig("tweet_id")
	}
	acct, res, err := s.linked(ctx, principal)
	if err != nil || res != nil {
		return deref(res), err
	}

	window := cfgWindow(cfg, 72)
	tweets, err := s.X.RecentTweets(ctx, acct.AccessToken, acct.ExternalUserID, s.Now().Add(-window))
	if err != nil {
		return VerificationResult{}, err
	}
	for _, t := range tweets {
		for _, ref := range t.ReferencedTweets {
			if ref.Type == "replied_to" && ref.ID == target {
				return passed("Found your reply", map[string]any{"tweet_id": t.ID, "in_reply_to": target}), nil
			}
		}
	}
	return notMet("No reply to post %s in the last %s", target, formatWindow(window)), nil
}

// Follow: the linked account follows target_username.
func (s *SocialChecks) Follow(ctx context.Context, principal string, cfg models.VerificationConfig) (VerificationResult, error) {
	target := strings.TrimPrefix(cfgString(cfg, "target_username"), "@")
	if target == "" {
		return VerificationResult{}, missingConfig("target_username")
	}
	acct, res, err := s.linked(ctx, principal)
	if err != nil || res != nil {
		return deref(res), err
	}

	ok, err := s.X.IsFollowing(ctx, acct.AccessToken, acct.ExternalUserID, target)
	if err != nil {
		return VerificationResult{}, err
	}
	if !ok {
		return notMet("@%s is not following @%s yet", acct.Username, target), nil
	}
	return passed("Following @"+target, map[string]any{"target_username": target, "x_user_id": acct.ExternalUserID}), nil
}

func deref(r *VerificationResult) VerificationResult {
	if r == nil {
		return VerificationResult{}
	}
	return *r
}
