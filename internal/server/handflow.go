package server

import (
	"fmt"

	"github.com/cardroomlabs/holdem/internal/deck"
	"github.com/cardroomlabs/holdem/internal/events"
	"github.com/cardroomlabs/holdem/internal/game"
)

// startNewHand runs inside the table actor. Implements the standard deal:
// rotate button, post blinds, two passes of hole cards, preflop betting.
func (o *Orchestrator) startNewHand(a *tableActor) error {
	t := a.table
	if t.CurrentHand != nil && t.CurrentHand.InProgress() {
		return ErrHandInProgress
	}

	btn, ok := o.nextButtonSeat(t)
	if !ok {
		return ErrNotEnoughPlayers
	}
	t.ButtonSeat = btn

	players := o.dealIn(t, 0)
	if len(players) < 2 {
		return ErrNotEnoughPlayers
	}

	t.HandCount++
	h := game.NewHand(t.ID, t.HandCount, t.SmallBlind, t.BigBlind)
	h.ButtonSeat = t.ButtonSeat
	h.StartedAt = o.clock.Now()
	h.Deck = o.newDeck()
	for _, p := range players {
		h.PlayerIDs = append(h.PlayerIDs, p.ID)
	}

	// Heads-up the button posts the small blind and acts first preflop.
	var sb, bb, first *game.Player
	if len(players) == 2 {
		bb, sb = players[0], players[1]
		first = sb
	} else {
		sb, bb = players[0], players[1]
		first = players[2]
	}
	h.SmallBlindSeat = sb.Seat
	h.BigBlindSeat = bb.Seat

	t.CurrentHand = h
	t.Status = TablePlaying
	a.chipBaseline = t.totalChips()

	if err := a.sm.Fire(h, game.TriggerStartHand); err != nil {
		return err
	}

	sbAmount := sb.PayChips(t.SmallBlind)
	h.Round.PostBlind(sb.ID, sbAmount)
	bbAmount := bb.PayChips(t.BigBlind)
	h.Round.PostBlind(bb.ID, bbAmount)
	// A short big blind still sets the full preflop price.
	h.Round.CurrentBet = t.BigBlind

	o.appendEvent(a, events.TypeHandStarted, events.HandStarted{
		HandNumber: h.Number,
		ButtonSeat: h.ButtonSeat,
		PlayerIDs:  h.PlayerIDs,
		SmallBlind: t.SmallBlind,
		BigBlind:   t.BigBlind,
	})
	o.appendEvent(a, events.TypeBlindPosted, events.BlindPosted{PlayerID: sb.ID, Kind: "small", Amount: sbAmount})
	o.appendEvent(a, events.TypeBlindPosted, events.BlindPosted{PlayerID: bb.ID, Kind: "big", Amount: bbAmount})

	if err := o.dealHoleCards(a, players); err != nil {
		return o.abortHand(a, err)
	}

	h.CurrentPlayerID = first.ID
	o.logger.Info("hand started", "table", t.ID, "hand", h.Number,
		"players", len(players), "button", h.ButtonSeat)

	o.broadcastHandStarted(a)
	o.startTurn(a, first)
	return nil
}

// startBombPot deals a bomb pot: no blinds, every player antes, the
// preflop street is skipped and betting opens on the flop. The button does
// not rotate.
func (o *Orchestrator) startBombPot(a *tableActor, ante int, doubleBoard bool) error {
	t := a.table
	if t.CurrentHand != nil && t.CurrentHand.InProgress() {
		return ErrHandInProgress
	}
	if ante <= 0 {
		return fmt.Errorf("bomb pot ante must be positive, got %d", ante)
	}

	players := o.dealIn(t, ante)
	if len(players) < 2 {
		return ErrNotEnoughPlayers
	}

	t.HandCount++
	a.bombPotVotes = make(map[string]bool)
	h := game.NewHand(t.ID, t.HandCount, t.SmallBlind, t.BigBlind)
	h.ButtonSeat = t.ButtonSeat
	h.StartedAt = o.clock.Now()
	h.Deck = o.newDeck()
	h.BombPot = true
	h.DoubleBoard = doubleBoard
	h.Ante = ante
	for _, p := range players {
		h.PlayerIDs = append(h.PlayerIDs, p.ID)
	}

	t.CurrentHand = h
	t.Status = TablePlaying
	a.chipBaseline = t.totalChips()

	o.appendEvent(a, events.TypeHandStarted, events.HandStarted{
		HandNumber:  h.Number,
		ButtonSeat:  h.ButtonSeat,
		PlayerIDs:   h.PlayerIDs,
		SmallBlind:  t.SmallBlind,
		BigBlind:    t.BigBlind,
		Ante:        ante,
		BombPot:     true,
		DoubleBoard: doubleBoard,
	})
	antes := make([]events.BatchEntry, 0, len(players))
	for _, p := range players {
		paid := p.PayChips(ante)
		antes = append(antes, events.BatchEntry{
			Type:    events.TypeAntePosted,
			Payload: events.AntePosted{PlayerID: p.ID, Amount: paid},
		})
	}
	o.appendBatch(a, antes)

	if err := o.dealHoleCards(a, players); err != nil {
		return o.abortHand(a, err)
	}

	// Antes go straight into the pot structure before flop betting.
	o.collectBets(a, false)
	if err := a.sm.Fire(h, game.TriggerStartBombPot); err != nil {
		return err
	}
	if err := o.dealStreet(a); err != nil {
		return o.abortHand(a, err)
	}

	first := o.firstToAct(t, h)
	if first == nil {
		// Everyone is all-in from the ante; run the board out.
		o.broadcastHandStarted(a)
		return o.runOut(a)
	}
	h.CurrentPlayerID = first.ID
	o.logger.Info("bomb pot started", "table", t.ID, "hand", h.Number,
		"ante", ante, "double_board", doubleBoard)

	o.broadcastHandStarted(a)
	o.startTurn(a, first)
	return nil
}

// dealIn resets hand state for every player who can play this hand and
// returns them in seat order starting left of the button. minChips > 0
// additionally requires the bomb pot ante.
func (o *Orchestrator) dealIn(t *Table, minChips int) []*game.Player {
	var out []*game.Player
	for _, p := range t.eligiblePlayers() {
		if p.Chips < minChips {
			continue
		}
		p.ResetForHand()
		p.Status = game.StatusActive
		out = append(out, p)
	}
	return out
}

// nextButtonSeat finds the next clockwise seat holding a playable stack.
func (o *Orchestrator) nextButtonSeat(t *Table) (int, bool) {
	for _, seat := range t.seatsFrom(t.ButtonSeat) {
		p := t.Seats[seat]
		if p.Status != game.StatusAway && p.Status != game.StatusSittingOut && p.Chips > 0 {
			return seat, true
		}
	}
	return 0, false
}

func (o *Orchestrator) dealHoleCards(a *tableActor, players []*game.Player) error {
	h := a.table.CurrentHand
	for pass := 0; pass < 2; pass++ {
		for _, p := range players {
			c, err := h.Deck.Deal()
			if err != nil {
				return err
			}
			p.HoleCards = append(p.HoleCards, c)
		}
	}
	entries := make([]events.BatchEntry, 0, len(players))
	for _, p := range players {
		entries = append(entries, events.BatchEntry{
			Type:    events.TypeHoleCardsDealt,
			Payload: events.HoleCardsDealt{PlayerID: p.ID, Cards: cardCodes(p.HoleCards)},
		})
	}
	o.appendBatch(a, entries)
	return nil
}

// executeAction validates and applies one player intent. Failures leave
// all state untouched and reach only the caller.
func (o *Orchestrator) executeAction(a *tableActor, playerID string, action game.ActionType, amount int) error {
	t := a.table
	h := t.CurrentHand
	if h == nil || !h.InProgress() {
		return ErrNoActiveHand
	}
	p := t.Player(playerID)
	if p == nil {
		return fmt.Errorf("%w: %s", ErrPlayerNotSeated, playerID)
	}

	isTurn := h.Phase.IsBettingPhase() && h.CurrentPlayerID == playerID
	va, err := game.ValidateAction(p, h.Round, isTurn, action, amount)
	if err != nil {
		return err
	}

	// The action beat the clock; any bank time it burned stays spent.
	bankUsed := o.timers.Cancel(t.ID, playerID)
	if bankUsed > p.TimeBank {
		bankUsed = p.TimeBank
	}
	p.TimeBank -= bankUsed

	game.Apply(p, h.Round, va)
	if va.Type == game.Fold {
		game.RemovePlayerFromPots(h.Pots, p.ID)
	}
	o.metrics.ActionsTotal.WithLabelValues(va.Type.String()).Inc()
	o.appendEvent(a, events.TypePlayerActed, events.PlayerActed{
		PlayerID: p.ID,
		Action:   va.Type.String(),
		Amount:   va.Amount,
		ToAmount: va.ToAmount,
		AllIn:    va.AllIn,
		TotalPot: h.TotalPot(),
	})
	o.logger.Info("action", "table", t.ID, "hand", h.Number, "player", p.ID,
		"type", va.Type, "amount", va.Amount)

	o.broadcastActionEcho(a, va)
	return o.resolveAction(a)
}

// forceTimeoutFold is the expiry path: fold the player whose clock ran
// out, debiting consumed time bank. No-ops if the player acted first.
func (o *Orchestrator) forceTimeoutFold(a *tableActor, handID, playerID string, timeBankUsed int) error {
	t := a.table
	h := t.CurrentHand
	if h == nil || h.ID != handID || !h.InProgress() {
		return ErrNoActiveHand
	}
	if h.CurrentPlayerID != playerID {
		return fmt.Errorf("%w: turn moved on", game.ErrNotYourTurn)
	}
	p := t.Player(playerID)
	if p == nil {
		return fmt.Errorf("%w: %s", ErrPlayerNotSeated, playerID)
	}

	if timeBankUsed > p.TimeBank {
		timeBankUsed = p.TimeBank
	}
	p.TimeBank -= timeBankUsed

	va, err := game.ValidateAction(p, h.Round, true, game.Fold, 0)
	if err != nil {
		return err
	}
	game.Apply(p, h.Round, va)
	game.RemovePlayerFromPots(h.Pots, p.ID)
	o.metrics.TimerExpirations.Inc()
	o.metrics.ActionsTotal.WithLabelValues(game.Fold.String()).Inc()
	o.appendEvent(a, events.TypeTimerExpired, events.TimerExpired{
		PlayerID:        p.ID,
		TimeBankUsed:    timeBankUsed,
		ResultingAction: game.Fold.String(),
	})
	o.appendEvent(a, events.TypePlayerActed, events.PlayerActed{
		PlayerID: p.ID,
		Action:   game.Fold.String(),
		TotalPot: h.TotalPot(),
	})
	o.logger.Warn("timeout fold", "table", t.ID, "player", p.ID, "bank_used", timeBankUsed)

	o.broadcastActionEcho(a, va)
	return o.resolveAction(a)
}

// resolveAction decides what the hand does next: end on a lone survivor,
// advance the street when betting is closed, or pass the turn.
func (o *Orchestrator) resolveAction(a *tableActor) error {
	t := a.table
	h := t.CurrentHand
	if err := o.checkConservation(a); err != nil {
		return err
	}

	live := o.livePlayers(t, h)
	if len(live) == 1 {
		return o.finishByFold(a, live[0])
	}
	if o.bettingRoundComplete(t, h) {
		return o.advanceStreet(a)
	}

	next := o.nextToAct(t, h)
	if next == nil {
		return o.advanceStreet(a)
	}
	h.CurrentPlayerID = next.ID
	o.broadcastState(a)
	o.startTurn(a, next)
	return nil
}

// afterPlayerRemoved re-resolves the hand after a mid-turn departure
// already recorded as a fold.
func (o *Orchestrator) afterPlayerRemoved(a *tableActor) {
	if err := o.resolveAction(a); err != nil {
		o.logger.Error("resolving hand after departure", "table", a.table.ID, "err", err)
	}
}

func (o *Orchestrator) livePlayers(t *Table, h *game.Hand) []*game.Player {
	var out []*game.Player
	for _, id := range h.PlayerIDs {
		if p := t.Player(id); p != nil && p.InHand() {
			out = append(out, p)
		}
	}
	return out
}

// bettingRoundComplete: every player who can still act has acted and
// matched the current bet.
func (o *Orchestrator) bettingRoundComplete(t *Table, h *game.Hand) bool {
	for _, id := range h.PlayerIDs {
		p := t.Player(id)
		if p == nil || p.Status != game.StatusActive {
			continue
		}
		if !h.Round.HasActed(id) || h.Round.Contribution(id) < h.Round.CurrentBet {
			return false
		}
	}
	return true
}

// nextToAct finds the next player clockwise from the current one who
// still owes a decision.
func (o *Orchestrator) nextToAct(t *Table, h *game.Hand) *game.Player {
	cur := t.Player(h.CurrentPlayerID)
	fromSeat := h.ButtonSeat
	if cur != nil {
		fromSeat = cur.Seat
	}
	for _, seat := range t.seatsFrom(fromSeat) {
		p := t.Seats[seat]
		if p.Status != game.StatusActive || !o.inHandList(h, p.ID) {
			continue
		}
		if !h.Round.HasActed(p.ID) || h.Round.Contribution(p.ID) < h.Round.CurrentBet {
			return p
		}
	}
	return nil
}

// firstToAct is the post-flop opener: first live player with a decision,
// clockwise from the button.
func (o *Orchestrator) firstToAct(t *Table, h *game.Hand) *game.Player {
	for _, seat := range t.seatsFrom(h.ButtonSeat) {
		p := t.Seats[seat]
		if p.Status == game.StatusActive && o.inHandList(h, p.ID) {
			return p
		}
	}
	return nil
}

func (o *Orchestrator) inHandList(h *game.Hand, playerID string) bool {
	for _, id := range h.PlayerIDs {
		if id == playerID {
			return true
		}
	}
	return false
}

// collectBets folds the street's contributions into the pot structure.
// With refundOverage set, chips nobody could call go back to their owner
// first so they never form a one-player side pot.
func (o *Orchestrator) collectBets(a *tableActor, refundOverage bool) {
	t := a.table
	h := t.CurrentHand

	folded := make(map[string]bool)
	allIn := make(map[string]bool)
	for _, id := range h.PlayerIDs {
		p := t.Player(id)
		if p == nil {
			folded[id] = true
			continue
		}
		switch p.Status {
		case game.StatusFolded:
			folded[id] = true
		case game.StatusAllIn:
			allIn[id] = true
		}
	}

	if refundOverage && h.Round != nil {
		roundContribs := make(map[string]int, len(h.PlayerIDs))
		for _, id := range h.PlayerIDs {
			roundContribs[id] = h.Round.Contribution(id)
		}
		if id, amount := game.UncallableOverage(h.PlayerIDs, roundContribs, folded); amount > 0 {
			p := t.Player(id)
			p.Chips += amount
			p.CurrentBet -= amount
			p.TotalBet -= amount
			h.Round.Contribute(id, -amount)
			o.appendEvent(a, events.TypeUncalledBetReturned, events.UncalledBetReturned{
				PlayerID: id,
				Amount:   amount,
			})
			o.logger.Info("uncalled bet returned", "table", t.ID, "player", id, "amount", amount)
		}
	}

	// Show order at showdown keys off the final street's aggressor.
	if h.Round != nil {
		h.LastAggressorID = h.Round.LastAggressorID
	}

	totals := make(map[string]int, len(h.PlayerIDs))
	for _, id := range h.PlayerIDs {
		if p := t.Player(id); p != nil {
			totals[id] = p.TotalBet
			p.CurrentBet = 0
		} else {
			// Departed players' committed chips stay in the pot.
			totals[id] = a.deadBets[id]
		}
	}
	h.Pots = game.CalculatePots(h.PlayerIDs, totals, allIn, folded)
	if h.Round != nil {
		h.Round.ResetContributions()
	}

	// Ante collection at bomb pot start has no betting round to close.
	if h.Phase.IsBettingPhase() {
		o.appendEvent(a, events.TypeBettingRoundCompleted, events.BettingRoundCompleted{
			Street: h.Phase.String(),
			Pots:   potSnapshots(h.Pots),
			Total:  h.TotalPot(),
		})
	}
}

// advanceStreet closes the betting round and moves the hand forward,
// running the board out when nobody can act anymore.
func (o *Orchestrator) advanceStreet(a *tableActor) error {
	t := a.table
	h := t.CurrentHand

	o.collectBets(a, true)

	if h.Phase == game.River {
		if err := a.sm.Fire(h, game.TriggerBettingComplete); err != nil {
			return err
		}
		return o.runShowdown(a)
	}

	canAct := 0
	for _, p := range o.livePlayers(t, h) {
		if p.Status == game.StatusActive {
			canAct++
		}
	}
	if canAct <= 1 {
		return o.runOut(a)
	}

	if err := a.sm.Fire(h, game.TriggerBettingComplete); err != nil {
		return err
	}
	if err := o.dealStreet(a); err != nil {
		return o.abortHand(a, err)
	}

	first := o.firstToAct(t, h)
	if first == nil {
		return o.runOut(a)
	}
	h.CurrentPlayerID = first.ID
	o.broadcastState(a)
	o.startTurn(a, first)
	return nil
}

// runOut deals the remaining streets with no betting and goes straight to
// showdown.
func (o *Orchestrator) runOut(a *tableActor) error {
	h := a.table.CurrentHand
	for h.Phase.IsBettingPhase() {
		if err := a.sm.Fire(h, game.TriggerBettingComplete); err != nil {
			return err
		}
		if !h.Phase.IsBettingPhase() {
			break
		}
		if err := o.dealStreet(a); err != nil {
			return o.abortHand(a, err)
		}
		o.broadcastState(a)
	}
	return o.runShowdown(a)
}

// dealStreet burns and deals the community cards for the current phase,
// both boards in a double-board hand.
func (o *Orchestrator) dealStreet(a *tableActor) error {
	t := a.table
	h := t.CurrentHand

	count := 0
	switch h.Phase {
	case game.Flop:
		count = 3
	case game.Turn, game.River:
		count = 1
	default:
		return fmt.Errorf("no street to deal in phase %s", h.Phase)
	}

	deal := func(board *[]deck.Card, boardNum int) error {
		if err := h.Deck.Burn(); err != nil {
			return err
		}
		cards, err := h.Deck.DealN(count)
		if err != nil {
			return err
		}
		*board = append(*board, cards...)
		o.appendEvent(a, events.TypeCommunityDealt, events.CommunityDealt{
			Phase: h.Phase.String(),
			Board: boardNum,
			Cards: cardCodes(cards),
		})
		return nil
	}

	if err := deal(&h.Community, 1); err != nil {
		return err
	}
	if h.DoubleBoard {
		if err := deal(&h.SecondBoard, 2); err != nil {
			return err
		}
	}
	o.logger.Debug("street dealt", "table", t.ID, "phase", h.Phase,
		"board", cardCodes(h.Community))
	return nil
}

// finishByFold ends the hand for the lone survivor without a showdown.
// The survivor takes everything, including their own unmatched chips.
func (o *Orchestrator) finishByFold(a *tableActor, survivor *game.Player) error {
	t := a.table
	h := t.CurrentHand

	o.timers.Cancel(t.ID, h.CurrentPlayerID)
	o.collectBets(a, false)

	winners := make(map[string][]string, len(h.Pots))
	for _, pot := range h.Pots {
		winners[pot.ID] = []string{survivor.ID}
	}
	payouts, err := game.AwardPots(h.Pots, winners)
	if err != nil {
		return o.abortHand(a, err)
	}
	for i := range h.Pots {
		o.appendEvent(a, events.TypePotAwarded, events.PotAwarded{
			PotID:   h.Pots[i].ID,
			Type:    h.Pots[i].Type.String(),
			Amounts: map[string]int{survivor.ID: h.Pots[i].Amount},
		})
		h.Pots[i].Amount = 0
	}
	survivor.Chips += payouts[survivor.ID]

	finalPhase := h.Phase.String()
	if err := a.sm.Fire(h, game.TriggerAllFolded); err != nil {
		return err
	}
	return o.completeHand(a, payouts, false, nil, finalPhase)
}

// runShowdown resolves the showdown and pays the winners.
func (o *Orchestrator) runShowdown(a *tableActor) error {
	t := a.table
	h := t.CurrentHand

	playersByID := make(map[string]*game.Player, len(h.PlayerIDs))
	for _, id := range h.PlayerIDs {
		if p := t.Player(id); p != nil {
			playersByID[id] = p
		}
	}
	res, err := game.RunShowdown(h, playersByID, a.muckRequests)
	if err != nil {
		return o.abortHand(a, err)
	}

	order := make([]string, len(res.Entries))
	for i, e := range res.Entries {
		order[i] = e.PlayerID
	}
	o.appendEvent(a, events.TypeShowdownStarted, events.ShowdownStarted{PlayerIDs: order})

	for _, e := range res.Entries {
		if !e.Showed {
			o.appendEvent(a, events.TypeCardsMucked, events.CardsMucked{PlayerID: e.PlayerID})
			continue
		}
		a.shownCards[e.PlayerID] = e.HoleCards
		shown := events.CardsShown{
			PlayerID: e.PlayerID,
			Cards:    cardCodes(e.HoleCards),
			Desc:     e.Result.Desc,
		}
		if e.SecondResult != nil {
			shown.SecondDesc = e.SecondResult.Desc
		}
		o.appendEvent(a, events.TypeCardsShown, shown)
	}

	for i := range h.Pots {
		pot := &h.Pots[i]
		if pot.Amount == 0 {
			continue
		}
		if h.DoubleBoard {
			firstHalf := pot.Amount - pot.Amount/2
			o.appendEvent(a, events.TypePotAwarded, events.PotAwarded{
				PotID: pot.ID, Type: pot.Type.String(), Board: 1,
				Amounts: game.SplitEvenly(firstHalf, res.WinnersByPot[pot.ID]),
			})
			o.appendEvent(a, events.TypePotAwarded, events.PotAwarded{
				PotID: pot.ID, Type: pot.Type.String(), Board: 2,
				Amounts: game.SplitEvenly(pot.Amount/2, res.SecondBoardWinners[pot.ID]),
			})
		} else {
			o.appendEvent(a, events.TypePotAwarded, events.PotAwarded{
				PotID: pot.ID, Type: pot.Type.String(),
				Amounts: game.SplitEvenly(pot.Amount, res.WinnersByPot[pot.ID]),
			})
		}
		pot.Amount = 0
	}

	for id, amount := range res.Payouts {
		if p := t.Player(id); p != nil {
			p.Chips += amount
		}
	}

	finalPhase := h.Phase.String()
	if err := a.sm.Fire(h, game.TriggerShowdownComplete); err != nil {
		return err
	}
	return o.completeHand(a, res.Payouts, true, res, finalPhase)
}

// completeHand records the final event, announces the result, and returns
// the table to waiting.
func (o *Orchestrator) completeHand(a *tableActor, payouts map[string]int, wentToShowdown bool, res *game.ShowdownResult, finalPhase string) error {
	t := a.table
	h := t.CurrentHand

	finalPot := 0
	for _, amount := range payouts {
		finalPot += amount
	}
	net := make(map[string]int, len(h.PlayerIDs))
	for _, id := range h.PlayerIDs {
		contributed := a.deadBets[id]
		if p := t.Player(id); p != nil {
			contributed = p.TotalBet
		}
		net[id] = payouts[id] - contributed
	}

	duration := h.CompletedAt.Sub(h.StartedAt)
	o.appendEvent(a, events.TypeHandCompleted, events.HandCompleted{
		Winnings:       payouts,
		NetResults:     net,
		TotalPot:       finalPot,
		FinalPhase:     finalPhase,
		WentToShowdown: wentToShowdown,
		DurationMillis: duration.Milliseconds(),
	})

	outcome := "fold"
	if wentToShowdown {
		outcome = "showdown"
	}
	o.metrics.HandsCompleted.WithLabelValues(outcome).Inc()

	var winners []WinnerData
	for id, amount := range payouts {
		w := WinnerData{PlayerID: id, Amount: amount}
		if res != nil {
			for _, e := range res.Entries {
				if e.PlayerID == id && e.Showed {
					w.Cards = cardCodes(e.HoleCards)
					w.HandDesc = e.Result.Desc
				}
			}
		}
		winners = append(winners, w)
	}

	o.logger.Info("hand complete", "table", t.ID, "hand", h.Number,
		"showdown", wentToShowdown, "pot", finalPot)

	o.broadcastState(a)
	o.broadcaster.BroadcastTable(t.ID, mustMessage(MessageTypeHandCompleted, HandCompletedData{
		TableID:        t.ID,
		HandID:         h.ID,
		HandNumber:     h.Number,
		Winners:        winners,
		FinalPot:       finalPot,
		WentToShowdown: wentToShowdown,
	}))

	if t.BombPotTrigger == BombPotTriggerButtonWin {
		if btn := t.Seats[h.ButtonSeat]; btn != nil && payouts[btn.ID] > 0 {
			a.bombPotNext = true
		}
	}

	t.CurrentHand = nil
	t.Status = TableWaiting
	a.muckRequests = make(map[string]bool)
	a.deadBets = make(map[string]int)
	return nil
}

// abortHand unwinds a hand that hit an internal failure: every committed
// chip goes back to its owner and the hand is force-ended.
func (o *Orchestrator) abortHand(a *tableActor, cause error) error {
	t := a.table
	h := t.CurrentHand

	o.timers.Cancel(t.ID, h.CurrentPlayerID)
	for _, id := range h.PlayerIDs {
		if p := t.Player(id); p != nil {
			p.Chips += p.TotalBet
			p.TotalBet = 0
			p.CurrentBet = 0
		}
	}
	h.Pots = nil
	if a.sm.CanFire(h, game.TriggerForceEnd) {
		if err := a.sm.Fire(h, game.TriggerForceEnd); err != nil {
			o.logger.Error("force end failed", "table", t.ID, "err", err)
		}
	}
	t.CurrentHand = nil
	t.Status = TableWaiting
	a.muckRequests = make(map[string]bool)
	a.deadBets = make(map[string]int)

	o.logger.Error("hand aborted", "table", t.ID, "hand", h.Number, "err", cause)
	o.broadcastState(a)
	return fmt.Errorf("hand %d aborted: %w", h.Number, cause)
}

// checkConservation verifies no chips appeared or vanished. A mismatch is
// a ledger bug: the hand cannot continue.
func (o *Orchestrator) checkConservation(a *tableActor) error {
	t := a.table
	if t.CurrentHand == nil {
		return nil
	}
	if got := t.totalChips(); got != a.chipBaseline {
		return o.abortHand(a, fmt.Errorf("chip conservation violated: have %d, want %d", got, a.chipBaseline))
	}
	return nil
}

// startTurn arms the action timer and tells everyone whose turn it is.
func (o *Orchestrator) startTurn(a *tableActor, p *game.Player) {
	t := a.table
	h := t.CurrentHand
	o.broadcaster.BroadcastTable(t.ID, mustMessage(MessageTypeActionRequired, ActionRequiredData{
		PlayerID:       p.ID,
		TimeoutSeconds: t.ActionTimerSeconds,
	}))
	bank := 0
	if t.TimeBankEnabled {
		bank = p.TimeBank
	}
	o.timers.Start(t.ID, h.ID, p.ID, t.ActionTimerSeconds, t.TimeBankEnabled, bank)
}

// broadcastState fans the sanitized projection out to every viewer. Views
// are built inside the actor so nothing races the table state.
func (o *Orchestrator) broadcastState(a *tableActor) {
	t := a.table
	now := o.clock.Now()

	views := make(map[string]*Message, len(t.Seats))
	for _, p := range t.Seats {
		views[p.ID] = mustMessage(MessageTypeGameState, Sanitize(t, p.ID, a.shownCards, now))
	}
	spectator := mustMessage(MessageTypeGameState, Sanitize(t, "", a.shownCards, now))

	o.broadcaster.BroadcastPersonalized(t.ID,
		func(playerID string) *Message { return views[playerID] },
		spectator)
}

// broadcastHandStarted sends each player their hole cards with the fresh
// state; spectators get the state alone.
func (o *Orchestrator) broadcastHandStarted(a *tableActor) {
	t := a.table
	h := t.CurrentHand
	now := o.clock.Now()

	// New hand, new information set.
	a.shownCards = make(map[string][]deck.Card)

	views := make(map[string]*Message, len(t.Seats))
	for _, p := range t.Seats {
		views[p.ID] = mustMessage(MessageTypeHandStarted, HandStartedData{
			State:         Sanitize(t, p.ID, a.shownCards, now),
			YourHoleCards: cardCodes(p.HoleCards),
			BombPot:       h.BombPot,
			DoubleBoard:   h.DoubleBoard,
		})
	}
	spectator := mustMessage(MessageTypeHandStarted, HandStartedData{
		State:       Sanitize(t, "", a.shownCards, now),
		BombPot:     h.BombPot,
		DoubleBoard: h.DoubleBoard,
	})

	o.broadcaster.BroadcastPersonalized(t.ID,
		func(playerID string) *Message { return views[playerID] },
		spectator)
}

func (o *Orchestrator) broadcastActionEcho(a *tableActor, va game.ValidatedAction) {
	t := a.table
	h := t.CurrentHand

	live := o.livePlayers(t, h)
	handComplete := len(live) == 1
	roundComplete := handComplete || o.bettingRoundComplete(t, h)
	nextID := ""
	if !roundComplete {
		if next := o.nextToAct(t, h); next != nil {
			nextID = next.ID
		}
	}
	o.broadcaster.BroadcastTable(t.ID, mustMessage(MessageTypeActionExecuted, ActionExecutedData{
		PlayerID:             va.PlayerID,
		Action:               va.Type.String(),
		Amount:               va.Amount,
		NextPlayerID:         nextID,
		BettingRoundComplete: roundComplete,
		HandComplete:         handComplete,
	}))
}

func (o *Orchestrator) appendEvent(a *tableActor, typ events.Type, payload any) {
	t := a.table
	h := t.CurrentHand
	o.store.Append(t.ID, h.ID, typ, payload)
	o.metrics.EventsAppended.Inc()
}

func (o *Orchestrator) appendBatch(a *tableActor, entries []events.BatchEntry) {
	t := a.table
	h := t.CurrentHand
	o.store.AppendBatch(t.ID, h.ID, entries)
	o.metrics.EventsAppended.Add(float64(len(entries)))
}

func potSnapshots(pots []game.Pot) []events.PotSnapshot {
	out := make([]events.PotSnapshot, len(pots))
	for i, p := range pots {
		out[i] = events.PotSnapshot{
			PotID:    p.ID,
			Type:     p.Type.String(),
			Amount:   p.Amount,
			Eligible: append([]string{}, p.Eligible...),
		}
	}
	return out
}
