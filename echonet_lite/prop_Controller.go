package echonet_lite

func (r PropertyRegistry) Controller() PropertyTable {
	return PropertyTable{
		ClassCode:   Controller_ClassCode,
		Description: "Controller",
	}
}
