package console

import (
	"echonet-bridge/echonet_lite"
	"fmt"

	"github.com/c-bata/go-prompt"
)

// Complete は go-prompt の補完関数です。
func (c *Console) Complete(d prompt.Document) []prompt.Suggest {
	words := splitWords(d.TextBeforeCursor())
	if len(words) == 0 {
		return nil
	}
	last := words[len(words)-1]
	if len(words) == 1 {
		return prompt.FilterHasPrefix(commandCandidates(), last, true)
	}
	def, ok := findCommand(words[0])
	if !ok || def.Candidates == nil {
		return nil
	}
	return prompt.FilterHasPrefix(def.Candidates(c, words), last, true)
}

func commandCandidates() []prompt.Suggest {
	suggests := make([]prompt.Suggest, 0, len(CommandTable))
	for _, def := range CommandTable {
		suggests = append(suggests, prompt.Suggest{Text: def.Name, Description: def.Summary})
		for _, alias := range def.Aliases {
			suggests = append(suggests, prompt.Suggest{Text: alias, Description: def.Summary})
		}
	}
	return suggests
}

// deviceCandidates はデバイス識別子の候補を返す
func (c *Console) deviceCandidates() []prompt.Suggest {
	infos, err := c.ctrl.Devices()
	if err != nil {
		return nil
	}
	suggests := make([]prompt.Suggest, 0, len(infos))
	for _, info := range infos {
		suggests = append(suggests, prompt.Suggest{
			Text:        info.Identifier,
			Description: fmt.Sprintf("%v %s", info.Key, className(info)),
		})
	}
	return suggests
}

// channelCandidates はデバイスのチャンネルの候補を返す
func (c *Console) channelCandidates(identifier string) []prompt.Suggest {
	infos, err := c.ctrl.Devices()
	if err != nil {
		return nil
	}
	info, err := findDevice(infos, identifier)
	if err != nil {
		return nil
	}
	suggests := make([]prompt.Suggest, 0, len(info.Channels))
	for _, ch := range sortedChannels(info.Channels) {
		suggests = append(suggests, prompt.Suggest{Text: ch, Description: info.Channels[ch]})
	}
	return suggests
}

// valueCandidates は Switch と選択肢型のチャンネルに書き込める値の候補を返す
func (c *Console) valueCandidates(identifier, channel string) []prompt.Suggest {
	infos, err := c.ctrl.Devices()
	if err != nil {
		return nil
	}
	info, err := findDevice(infos, identifier)
	if err != nil {
		return nil
	}
	if info.Channels[channel] == echonet_lite.ItemTypeSwitch {
		return []prompt.Suggest{{Text: "ON"}, {Text: "OFF"}}
	}
	if c.catalog == nil {
		return nil
	}
	epc, ok := c.catalog.LookupChannel(info.Key.ClassCode(), channel)
	if !ok {
		return nil
	}
	options, ok := epc.Codec.(*echonet_lite.OptionCodec)
	if !ok {
		return nil
	}
	var suggests []prompt.Suggest
	for _, name := range options.Names() {
		suggests = append(suggests, prompt.Suggest{Text: name})
	}
	return suggests
}

// classCandidates は add で指定するクラスの候補を返す
func (c *Console) classCandidates() []prompt.Suggest {
	if c.catalog == nil {
		return nil
	}
	var suggests []prompt.Suggest
	for _, class := range c.catalog.Classes().All() {
		if !class.Code.IsDeviceObject() {
			continue
		}
		suggests = append(suggests, prompt.Suggest{
			Text:        fmt.Sprintf("%04X:1", uint16(class.Code)),
			Description: class.Description,
		})
	}
	return suggests
}

// splitWords は入力行を単語に分割する補助関数
// クォートで囲まれた空白は単語の一部として扱い、末尾が空白なら空の単語を1つ追加する
func splitWords(line string) []string {
	if line == "" {
		return []string{}
	}

	words := make([]string, 0)
	var word string
	inQuote := false
	lastWasSpace := true

	for _, r := range line {
		switch r {
		case ' ', '\t':
			if !inQuote {
				if !lastWasSpace && word != "" {
					words = append(words, word)
					word = ""
				}
				lastWasSpace = true
			} else {
				word += string(r)
				lastWasSpace = false
			}
		case '"', '\'':
			inQuote = !inQuote
			lastWasSpace = false
		default:
			word += string(r)
			lastWasSpace = false
		}
	}

	if word != "" {
		words = append(words, word)
	}
	if lastWasSpace {
		words = append(words, "")
	}
	return words
}
